package mailer

import (
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer represents an email sender.
type Mailer struct {
	config *Config
	dialer *gomail.Dialer
}

// Email represents an email message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Config holds SMTP configuration for sending emails.
type Config struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"      envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
	FromName string `env:"SMTP_FROM_NAME" envDefault:"Community Vaadi Booking"`
	// Insecure skips TLS certificate verification. Development only.
	Insecure bool `env:"SMTP_INSECURE"`
}

// NewMailer creates a new Mailer instance with the given configuration.
func NewMailer(cfg Config) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dialer := gomail.NewDialer(
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
	)
	dialer.SSL = cfg.Port == 465
	if cfg.Insecure {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Mailer{
		config: &cfg,
		dialer: dialer,
	}, nil
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, email)

	return m.dialer.DialAndSend(msg)
}

// SendHTML sends an HTML email with an optional plain text alternative.
func (m *Mailer) SendHTML(to []string, subject, htmlBody, textBody string) error {
	return m.Send(Email{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		Body:     textBody,
	})
}

func (m *Mailer) setEmailMessage(msg *gomail.Message, email Email) {
	msg.SetAddressHeader("From", m.config.From, m.config.FromName)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
}

// validate checks if the Mailer configuration is valid.
func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.Username == "" {
		return fmt.Errorf("missing SMTP_USERNAME environment variable")
	}
	if c.Password == "" {
		return fmt.Errorf("missing SMTP_PASSWORD environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}

	return nil
}

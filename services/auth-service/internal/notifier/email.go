package notifier

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
)

// Notifier delivers a single notification.
type Notifier interface {
	Send(ctx context.Context, notification model.Notification) error
}

// HTMLSender is the part of *mailer.Mailer the email notifier needs.
type HTMLSender interface {
	SendHTML(to []string, subject, htmlBody, textBody string) error
}

type emailContent struct {
	subject string
	path    string
	expiry  string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

type emailData struct {
	Name   string
	Link   string
	Expiry string
}

var contents = map[model.NotificationKind]emailContent{
	model.NotificationVerification: {
		subject: "Verify your email",
		path:    "/verify-email",
		expiry:  "24 hours",
		html: htmltemplate.Must(htmltemplate.New("verification.html").Parse(
			`<p>Hello {{.Name}},</p>` +
				`<p>Please verify your email address by clicking the link below.</p>` +
				`<p><a href="{{.Link}}">Verify email</a></p>` +
				`<p>This link will expire in {{.Expiry}}.</p>`,
		)),
		text: texttemplate.Must(texttemplate.New("verification.txt").Parse(
			"Hello {{.Name}},\n\nPlease verify your email address by opening the link below.\n\n" +
				"{{.Link}}\n\nThis link will expire in {{.Expiry}}.\n",
		)),
	},
	model.NotificationPasswordReset: {
		subject: "Reset your password",
		path:    "/auth/reset-password",
		expiry:  "1 hour",
		html: htmltemplate.Must(htmltemplate.New("password_reset.html").Parse(
			`<p>Hello {{.Name}},</p>` +
				`<p>We received a request to reset your password. Click the link below to choose a new one.</p>` +
				`<p><a href="{{.Link}}">Reset password</a></p>` +
				`<p>This link will expire in {{.Expiry}}. If you did not request a reset you can ignore this email.</p>`,
		)),
		text: texttemplate.Must(texttemplate.New("password_reset.txt").Parse(
			"Hello {{.Name}},\n\nWe received a request to reset your password. Open the link below to choose a new one.\n\n" +
				"{{.Link}}\n\nThis link will expire in {{.Expiry}}. If you did not request a reset you can ignore this email.\n",
		)),
	},
}

// EmailNotifier renders notifications as HTML emails with a plain text alternative.
type EmailNotifier struct {
	sender HTMLSender
}

func NewEmailNotifier(sender HTMLSender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) Send(ctx context.Context, notification model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, ok := contents[notification.Kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", notification.Kind)
	}
	if notification.RecipientEmail == "" {
		return fmt.Errorf("notification has no recipient")
	}

	data := emailData{
		Name:   notification.RecipientName,
		Link:   tokenLink(notification.ReturnURLBase, content.path, notification.RawToken),
		Expiry: content.expiry,
	}

	var htmlBody, textBody bytes.Buffer
	if err := content.html.Execute(&htmlBody, data); err != nil {
		return fmt.Errorf("failed to render %s email: %w", notification.Kind, err)
	}
	if err := content.text.Execute(&textBody, data); err != nil {
		return fmt.Errorf("failed to render %s email: %w", notification.Kind, err)
	}

	if err := n.sender.SendHTML(
		[]string{notification.RecipientEmail},
		content.subject,
		htmlBody.String(),
		textBody.String(),
	); err != nil {
		return fmt.Errorf("failed to send %s email: %w", notification.Kind, err)
	}

	return nil
}

func tokenLink(base, path, rawToken string) string {
	return base + path + "?token=" + url.QueryEscape(rawToken)
}

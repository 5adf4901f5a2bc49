package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/vaadi-booking-api/shared/mailer"
)

// AuthServiceConfig is the complete runtime configuration of the auth service.
type AuthServiceConfig struct {
	Environment string `env:"APP_ENV"   envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY"`
	SentryDSN   string `env:"SENTRY_DSN"`

	HTTP         HTTPConfig         `envPrefix:"HTTP_"`
	Mongo        MongoConfig        `envPrefix:"MONGO_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Token        TokenConfig        `envPrefix:"TOKEN_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	Notification NotificationConfig `envPrefix:"NOTIFICATION_"`
	Sweeper      SweeperConfig      `envPrefix:"SWEEPER_"`
	SMTP         mailer.Config

	// AppBaseURL is used for email links when a request carries no return URL.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:4200"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8000"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CookieSecure    bool          `env:"COOKIE_SECURE"    envDefault:"true"`
	// AllowedReturnURLs lists the frontends that may receive email links. Any other
	// requested base falls back to AppBaseURL.
	AllowedReturnURLs []string `env:"ALLOWED_RETURN_URLS" envSeparator:","`
}

type MongoConfig struct {
	URI      string `env:"URI"      envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"vaadi_booking"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
}

type TokenConfig struct {
	Issuer   string `env:"ISSUER"   envDefault:"vaadi-auth-service"`
	Audience string `env:"AUDIENCE" envDefault:"vaadi-booking"`

	AccessTokenSecret     string        `env:"ACCESS_SECRET,required,notEmpty"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_EXPIRES_IN"  envDefault:"15m"`
	RefreshTokenSecret    string        `env:"REFRESH_SECRET,required,notEmpty"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_EXPIRES_IN" envDefault:"168h"`

	VerificationTokenExpiresIn  time.Duration `env:"VERIFICATION_EXPIRES_IN"   envDefault:"24h"`
	PasswordResetTokenExpiresIn time.Duration `env:"PASSWORD_RESET_EXPIRES_IN" envDefault:"1h"`
}

type RateLimitConfig struct {
	Window                time.Duration `env:"WINDOW"                  envDefault:"15m"`
	PasswordResetRequests int           `env:"PASSWORD_RESET_REQUESTS" envDefault:"5"`
	VerificationResends   int           `env:"VERIFICATION_RESENDS"    envDefault:"3"`
}

type NotificationConfig struct {
	Workers     int           `env:"WORKERS"      envDefault:"4"`
	BufferSize  int           `env:"BUFFER_SIZE"  envDefault:"256"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
}

type SweeperConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"10m"`
}

// Load parses the configuration from environment variables and validates it.
func Load() (*AuthServiceConfig, error) {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants env tags cannot express.
func (c *AuthServiceConfig) Validate() error {
	if c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		return errors.New("TOKEN_ACCESS_SECRET and TOKEN_REFRESH_SECRET must differ")
	}
	if c.Token.AccessTokenExpiresIn <= 0 || c.Token.RefreshTokenExpiresIn <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.Token.AccessTokenExpiresIn >= c.Token.RefreshTokenExpiresIn {
		return errors.New("TOKEN_ACCESS_EXPIRES_IN must be shorter than TOKEN_REFRESH_EXPIRES_IN")
	}
	if c.Token.VerificationTokenExpiresIn <= 0 || c.Token.PasswordResetTokenExpiresIn <= 0 {
		return errors.New("single-use token lifetimes must be positive")
	}
	if c.Notification.Workers <= 0 {
		return errors.New("NOTIFICATION_WORKERS must be positive")
	}

	return nil
}

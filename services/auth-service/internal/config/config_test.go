package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TOKEN_ACCESS_SECRET", "access-secret")
	t.Setenv("TOKEN_REFRESH_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "vaadi_booking", cfg.Mongo.Database)
	assert.Equal(t, 15*time.Minute, cfg.Token.AccessTokenExpiresIn)
	assert.Equal(t, 7*24*time.Hour, cfg.Token.RefreshTokenExpiresIn)
	assert.Equal(t, 24*time.Hour, cfg.Token.VerificationTokenExpiresIn)
	assert.Equal(t, time.Hour, cfg.Token.PasswordResetTokenExpiresIn)
	assert.Equal(t, 5, cfg.RateLimit.PasswordResetRequests)
	assert.Equal(t, 4, cfg.Notification.Workers)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.HTTP.CookieSecure)
	assert.Empty(t, cfg.HTTP.AllowedReturnURLs)
	assert.Equal(t, 30*time.Second, cfg.Notification.SendTimeout)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_ACCESS_EXPIRES_IN", "30m")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("HTTP_ALLOWED_RETURN_URLS", "https://app.example.com,https://admin.example.com")
	t.Setenv("NOTIFICATION_SEND_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.HTTP.AllowedReturnURLs)
	assert.Equal(t, 5*time.Second, cfg.Notification.SendTimeout)

	assert.Equal(t, 30*time.Minute, cfg.Token.AccessTokenExpiresIn)
	assert.Equal(t, "mongodb://mongo:27017", cfg.Mongo.URI)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
}

func TestLoadMissingSecrets(t *testing.T) {
	t.Setenv("TOKEN_ACCESS_SECRET", "")
	t.Setenv("TOKEN_REFRESH_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "shared secret", env: map[string]string{"TOKEN_REFRESH_SECRET": "access-secret"}},
		{name: "access outlives refresh", env: map[string]string{"TOKEN_ACCESS_EXPIRES_IN": "200h"}},
		{name: "zero reset lifetime", env: map[string]string{"TOKEN_PASSWORD_RESET_EXPIRES_IN": "0s"}},
		{name: "no workers", env: map[string]string{"NOTIFICATION_WORKERS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

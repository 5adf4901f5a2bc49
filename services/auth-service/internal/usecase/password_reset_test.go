package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/ratelimit"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

func resetNotifications(env *testEnv) []model.Notification {
	var out []model.Notification
	for _, n := range env.dispatcher.all() {
		if n.Kind == model.NotificationPasswordReset {
			out = append(out, n)
		}
	}
	return out
}

func TestRequestPasswordResetDoesNotDiscloseAccounts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)

	known := env.reset.RequestPasswordReset(ctx, "a@x.com", "")
	unknown := env.reset.RequestPasswordReset(ctx, "nobody@x.com", "")

	assert.NoError(t, known)
	assert.NoError(t, unknown)
	assert.Equal(t, 1, env.resetTokens.count())

	sent := resetNotifications(env)
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].RecipientEmail)
	assert.Equal(t, "http://localhost:4200", sent[0].ReturnURLBase)
}

func TestRequestPasswordResetStoresDigest(t *testing.T) {
	env := newTestEnv()
	account, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)

	require.NoError(t, env.reset.RequestPasswordReset(context.Background(), " A@X.com", "https://app.example.com"))

	sent := resetNotifications(env)
	require.Len(t, sent, 1)

	env.resetTokens.mu.Lock()
	stored := *env.resetTokens.tokens[0]
	env.resetTokens.mu.Unlock()

	assert.Equal(t, account.ID, stored.AccountID)
	assert.Equal(t, security.HashSecret(sent[0].RawToken), stored.TokenHash)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, time.Minute)
}

func TestRequestPasswordResetValidation(t *testing.T) {
	env := newTestEnv()
	assert.ErrorIs(t, env.reset.RequestPasswordReset(context.Background(), "   ", ""), ErrValidation)
}

func TestRequestPasswordResetStorageFailures(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)

	env.resetTokens.failCreate = errStorage
	assert.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	assert.Empty(t, resetNotifications(env))

	env.resetTokens.failCreate = nil
	env.accounts.failWith = errStorage
	assert.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	assert.NoError(t, env.reset.RequestPasswordReset(ctx, "nobody@x.com", ""))
	assert.Empty(t, resetNotifications(env))
	assert.Zero(t, env.resetTokens.count())
}

func TestResetPasswordBurnsTokenWhenUpdateFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)
	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	sent := resetNotifications(env)
	require.Len(t, sent, 1)

	env.accounts.failWith = errStorage
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, sent[0].RawToken, "newsecret"), ErrInternal)

	env.accounts.failWith = nil
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, sent[0].RawToken, "newsecret"), ErrInvalidOrExpired)
	_, err = env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: "secret1"})
	assert.NoError(t, err)
}

func TestRequestPasswordResetRateLimited(t *testing.T) {
	env := newTestEnv()
	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)

	env.reset.limiter = stubLimiter{err: ratelimit.ErrRateLimited}
	assert.NoError(t, env.reset.RequestPasswordReset(context.Background(), "a@x.com", ""))
	assert.Empty(t, resetNotifications(env))
	assert.Zero(t, env.resetTokens.count())

	env.reset.limiter = stubLimiter{err: ratelimit.ErrRedisUnavailable}
	assert.NoError(t, env.reset.RequestPasswordReset(context.Background(), "a@x.com", ""))
	assert.Len(t, resetNotifications(env), 1)
}

func TestResetPasswordScenario(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	account, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)
	result, err := env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	sent := resetNotifications(env)
	require.Len(t, sent, 2)

	require.NoError(t, env.reset.ResetPassword(ctx, sent[0].RawToken, "newsecret"))

	// every outstanding token of the account is gone
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, sent[1].RawToken, "another1"), ErrInvalidOrExpired)
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, sent[0].RawToken, "another1"), ErrInvalidOrExpired)
	assert.Zero(t, env.resetTokens.count())

	_, err = env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.auth.Login(ctx, LoginParams{Email: "a@x.com", Password: "newsecret"})
	assert.NoError(t, err)

	// the session opened before the reset cannot be refreshed
	_, err = env.sessions.Rotate(ctx, result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, "plain$newsecret", env.accounts.get(account.ID).PasswordHash)
}

func TestResetPasswordExpiry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)

	issuedAt := time.Now()
	env.reset.now = func() time.Time { return issuedAt }
	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	token := resetNotifications(env)[0].RawToken

	env.reset.now = func() time.Time { return issuedAt.Add(time.Hour) }
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, token, "newsecret"), ErrInvalidOrExpired)

	env.reset.now = func() time.Time { return issuedAt.Add(time.Hour - time.Second) }
	assert.NoError(t, env.reset.ResetPassword(ctx, token, "newsecret"))
}

func TestResetPasswordValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)
	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	token := resetNotifications(env)[0].RawToken

	tests := []struct {
		name     string
		token    string
		password string
		wantErr  error
	}{
		{name: "missing token", token: "", password: "newsecret", wantErr: ErrMissingToken},
		{name: "missing password", token: token, password: "", wantErr: ErrMissingPassword},
		{name: "weak password", token: token, password: "abc", wantErr: ErrWeakPassword},
		{name: "unknown token", token: "deadbeef", password: "newsecret", wantErr: ErrInvalidOrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.reset.ResetPassword(ctx, tt.token, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// rejected attempts leave the token redeemable
	assert.Equal(t, 1, env.resetTokens.count())
	assert.NoError(t, env.reset.ResetPassword(ctx, token, "newsecret"))
}

func TestResetPasswordHashFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.register("a@x.com", "9000000001", "secret1")
	require.NoError(t, err)
	require.NoError(t, env.reset.RequestPasswordReset(ctx, "a@x.com", ""))
	token := resetNotifications(env)[0].RawToken

	env.reset.hasher = failingHasher{}
	assert.ErrorIs(t, env.reset.ResetPassword(ctx, token, "newsecret"), ErrInternal)
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("out of memory") }

func (failingHasher) Verify(string, string) (bool, error) { return false, errors.New("out of memory") }

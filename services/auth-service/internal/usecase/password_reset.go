package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/ratelimit"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

// PasswordResetUsecase defines the business logic for password reset token operations.
type PasswordResetUsecase interface {
	// RequestPasswordReset initiates the password reset process for a given email.
	// The result is identical whether or not an account with that email exists.
	RequestPasswordReset(ctx context.Context, email, returnURLBase string) error

	// ResetPassword sets a new password using a reset token and invalidates every other
	// outstanding reset token of the same account.
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

type passwordResetUsecase struct {
	accountRepo    repository.AccountRepository
	tokenRepo      repository.PasswordResetTokenRepository
	hasher         security.PasswordHasher
	dispatcher     NotificationDispatcher
	limiter        ratelimit.Limiter
	authServiceCfg *config.AuthServiceConfig
	logger         *zerolog.Logger
	now            func() time.Time
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(
	accountRepo repository.AccountRepository,
	tokenRepo repository.PasswordResetTokenRepository,
	hasher security.PasswordHasher,
	dispatcher NotificationDispatcher,
	limiter ratelimit.Limiter,
	authServiceCfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) PasswordResetUsecase {
	return &passwordResetUsecase{
		accountRepo:    accountRepo,
		tokenRepo:      tokenRepo,
		hasher:         hasher,
		dispatcher:     dispatcher,
		limiter:        limiter,
		authServiceCfg: authServiceCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (u *passwordResetUsecase) RequestPasswordReset(ctx context.Context, email, returnURLBase string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrMissingEmail
	}

	// Generated for every request so that both branches below do the same local work.
	rawToken, err := security.NewRawSecret()
	if err != nil {
		u.logger.Error().Err(err).Msg("failed to generate password reset token")
		return nil
	}
	tokenHash := security.HashSecret(rawToken)

	if err := u.limiter.Allow(ctx, "reset:"+email); err != nil {
		// To prevent email enumeration, a throttled request looks like any other.
		if errors.Is(err, ratelimit.ErrRateLimited) {
			u.logger.Warn().Msg("password reset request rate limited")
			return nil
		}
		u.logger.Warn().Err(err).Msg("password reset limiter unavailable")
	}

	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// To prevent email enumeration, do not reveal that the email does not exist.
			return nil
		}
		u.logger.Error().Err(err).Msg("failed to load account for password reset")
		return nil
	}

	if _, err := u.tokenRepo.CreateToken(ctx, &model.PasswordResetToken{
		AccountID: account.ID,
		TokenHash: tokenHash,
		ExpiresAt: u.now().Add(u.authServiceCfg.Token.PasswordResetTokenExpiresIn),
	}); err != nil {
		// Failing here would only ever happen for existing accounts.
		u.logger.Error().Err(err).Str("account_id", account.ID.Hex()).Msg("failed to store password reset token")
		return nil
	}

	u.dispatcher.Dispatch(ctx, model.Notification{
		Kind:           model.NotificationPasswordReset,
		RecipientEmail: account.Email,
		RecipientName:  account.FullName,
		RawToken:       rawToken,
		ReturnURLBase:  returnURLOrDefault(returnURLBase, u.authServiceCfg.AppBaseURL),
	})

	return nil
}

func (u *passwordResetUsecase) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrMissingToken
	}
	if newPassword == "" {
		return ErrMissingPassword
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	resetToken, err := u.tokenRepo.ConsumeToken(ctx, security.HashSecret(rawToken), u.now())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInvalidOrExpired
		}
		return internalError(u.logger, err, "failed to consume password reset token")
	}

	accountID := resetToken.AccountID.Hex()

	passwordHash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return internalError(u.logger, err, "failed to hash password")
	}

	if _, err := u.accountRepo.UpdateAccount(ctx, accountID, repository.UpdateAccountParams{
		PasswordHash: &passwordHash,
	}); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInvalidOrExpired
		}
		return internalError(u.logger, err, "failed to update password")
	}

	if _, err := u.tokenRepo.DeleteTokensByAccount(ctx, accountID); err != nil {
		return internalError(u.logger, err, "failed to invalidate password reset tokens")
	}

	// Sessions opened with the old password must not outlive it.
	if err := u.accountRepo.ClearRefreshTokenHash(ctx, accountID); err != nil {
		u.logger.Error().Err(err).Str("account_id", accountID).Msg("failed to revoke sessions after password reset")
	}

	u.logger.Info().Str("account_id", accountID).Msg("password reset")

	return nil
}

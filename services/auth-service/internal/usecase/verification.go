package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/ratelimit"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

// VerificationUsecase defines the business logic for email verification tokens.
type VerificationUsecase interface {
	// IssueVerification stores a fresh verification token on the account and returns the
	// raw value for delivery. Any previously issued token stops being redeemable.
	IssueVerification(ctx context.Context, accountID string) (string, error)

	// RedeemVerification marks the owning account as verified and consumes the token.
	RedeemVerification(ctx context.Context, rawToken string) error

	// ResendVerification issues and sends a new token to an unverified account.
	ResendVerification(ctx context.Context, email, returnURLBase string) error
}

type verificationUsecase struct {
	accountRepo    repository.AccountRepository
	dispatcher     NotificationDispatcher
	limiter        ratelimit.Limiter
	authServiceCfg *config.AuthServiceConfig
	logger         *zerolog.Logger
	now            func() time.Time
}

// NewVerificationUsecase creates a new instance of VerificationUsecase.
func NewVerificationUsecase(
	accountRepo repository.AccountRepository,
	dispatcher NotificationDispatcher,
	limiter ratelimit.Limiter,
	authServiceCfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) VerificationUsecase {
	return &verificationUsecase{
		accountRepo:    accountRepo,
		dispatcher:     dispatcher,
		limiter:        limiter,
		authServiceCfg: authServiceCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (u *verificationUsecase) IssueVerification(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", ErrMissingAccountID
	}

	rawToken, err := security.NewRawSecret()
	if err != nil {
		return "", internalError(u.logger, err, "failed to generate verification token")
	}

	expiresAt := u.now().Add(u.authServiceCfg.Token.VerificationTokenExpiresIn)
	err = u.accountRepo.SetVerificationToken(ctx, accountID, security.HashSecret(rawToken), expiresAt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, bson.ErrInvalidHex) {
			return "", ErrNotFound
		}
		return "", internalError(u.logger, err, "failed to store verification token")
	}

	return rawToken, nil
}

func (u *verificationUsecase) RedeemVerification(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrMissingToken
	}

	account, err := u.accountRepo.ConsumeVerificationToken(ctx, security.HashSecret(rawToken), u.now())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInvalidOrExpired
		}
		return internalError(u.logger, err, "failed to redeem verification token")
	}

	u.logger.Info().Str("account_id", account.ID.Hex()).Msg("email verified")

	return nil
}

func (u *verificationUsecase) ResendVerification(ctx context.Context, email, returnURLBase string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrMissingEmail
	}

	if err := u.limiter.Allow(ctx, "verify:"+email); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return ErrRateLimited
		}
		u.logger.Warn().Err(err).Msg("verification resend limiter unavailable")
	}

	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return internalError(u.logger, err, "failed to load account for verification resend")
	}

	if account.Verified {
		return ErrAlreadyVerified
	}

	rawToken, err := u.IssueVerification(ctx, account.ID.Hex())
	if err != nil {
		return err
	}

	u.dispatcher.Dispatch(ctx, model.Notification{
		Kind:           model.NotificationVerification,
		RecipientEmail: account.Email,
		RecipientName:  account.FullName,
		RawToken:       rawToken,
		ReturnURLBase:  u.returnURL(returnURLBase),
	})

	return nil
}

func (u *verificationUsecase) returnURL(base string) string {
	return returnURLOrDefault(base, u.authServiceCfg.AppBaseURL)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func returnURLOrDefault(base, fallback string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/")
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/auth"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

// SessionUsecase issues, verifies, rotates and revokes access/refresh token pairs.
// Each account holds at most one valid refresh token: the SHA-256 digest of the
// latest one issued is stored on the account and every other token is rejected.
type SessionUsecase interface {
	// IssuePair mints a new pair and overwrites the stored refresh digest.
	IssuePair(ctx context.Context, account *model.Account) (*model.TokenPair, error)

	// VerifyAccess checks an access token's signature, expiry, issuer and audience.
	VerifyAccess(token string) (*auth.Claims, error)

	// Rotate exchanges a current refresh token for a new pair. A superseded, revoked or
	// concurrently rotated token fails with ErrUnauthorized.
	Rotate(ctx context.Context, refreshToken string) (*model.TokenPair, error)

	// Revoke clears the stored refresh digest so no outstanding refresh token can rotate.
	Revoke(ctx context.Context, accountID string) error
}

type sessionUsecase struct {
	accountRepo    repository.AccountRepository
	jwtAuth        auth.JWTAuthenticator
	authServiceCfg *config.AuthServiceConfig
	logger         *zerolog.Logger
	now            func() time.Time
}

// NewSessionUsecase creates a new instance of SessionUsecase.
func NewSessionUsecase(
	accountRepo repository.AccountRepository,
	jwtAuth auth.JWTAuthenticator,
	authServiceCfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) SessionUsecase {
	return &sessionUsecase{
		accountRepo:    accountRepo,
		jwtAuth:        jwtAuth,
		authServiceCfg: authServiceCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (u *sessionUsecase) IssuePair(ctx context.Context, account *model.Account) (*model.TokenPair, error) {
	pair, refreshHash, err := u.mint(account)
	if err != nil {
		return nil, internalError(u.logger, err, "failed to sign session tokens")
	}

	if err := u.accountRepo.SetRefreshTokenHash(ctx, account.ID.Hex(), refreshHash); err != nil {
		return nil, internalError(u.logger, err, "failed to store refresh token")
	}

	return pair, nil
}

func (u *sessionUsecase) VerifyAccess(token string) (*auth.Claims, error) {
	claims, err := u.jwtAuth.ParseClaims(token, u.authServiceCfg.Token.AccessTokenSecret, auth.TokenTypeAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return claims, nil
}

func (u *sessionUsecase) Rotate(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrUnauthorized
	}

	claims, err := u.jwtAuth.ParseClaims(refreshToken, u.authServiceCfg.Token.RefreshTokenSecret, auth.TokenTypeRefresh)
	if err != nil {
		u.logger.Debug().Err(err).Msg("rejected refresh token")
		return nil, ErrUnauthorized
	}

	account, err := u.accountRepo.GetAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, bson.ErrInvalidHex) {
			return nil, ErrUnauthorized
		}
		return nil, internalError(u.logger, err, "failed to load account for refresh")
	}

	presentedHash := security.HashSecret(refreshToken)
	if account.RefreshTokenHash == nil || *account.RefreshTokenHash != presentedHash {
		u.logger.Warn().Str("account_id", claims.Subject).Msg("refresh token is superseded or revoked")
		return nil, ErrUnauthorized
	}

	pair, nextHash, err := u.mint(account)
	if err != nil {
		return nil, internalError(u.logger, err, "failed to sign session tokens")
	}

	// Only the first of several concurrent rotations of the same token matches the filter.
	err = u.accountRepo.SwapRefreshTokenHash(ctx, claims.Subject, presentedHash, nextHash)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			u.logger.Warn().Str("account_id", claims.Subject).Msg("refresh token lost rotation race")
			return nil, ErrUnauthorized
		}
		return nil, internalError(u.logger, err, "failed to rotate refresh token")
	}

	return pair, nil
}

func (u *sessionUsecase) Revoke(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}

	err := u.accountRepo.ClearRefreshTokenHash(ctx, accountID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, bson.ErrInvalidHex) {
			return nil
		}
		return internalError(u.logger, err, "failed to revoke refresh token")
	}

	return nil
}

// mint signs a new pair and returns the digest of its refresh token.
func (u *sessionUsecase) mint(account *model.Account) (*model.TokenPair, string, error) {
	now := u.now()
	subject := account.ID.Hex()
	role := string(account.Role)

	accessToken, err := u.jwtAuth.GenerateToken(
		u.jwtAuth.NewClaims(subject, role, auth.TokenTypeAccess, now, u.authServiceCfg.Token.AccessTokenExpiresIn),
		u.authServiceCfg.Token.AccessTokenSecret,
	)
	if err != nil {
		return nil, "", err
	}

	refreshToken, err := u.jwtAuth.GenerateToken(
		u.jwtAuth.NewClaims(subject, role, auth.TokenTypeRefresh, now, u.authServiceCfg.Token.RefreshTokenExpiresIn),
		u.authServiceCfg.Token.RefreshTokenSecret,
	)
	if err != nil {
		return nil, "", err
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, security.HashSecret(refreshToken), nil
}

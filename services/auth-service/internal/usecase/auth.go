package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*model.Account, error)
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)
	Logout(ctx context.Context, accountID string) error
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	CurrentAccount(ctx context.Context, accountID string) (*model.Account, error)
	PromoteSuperAdmin(ctx context.Context, params PromoteParams) (*model.Account, error)
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult is the authenticated account and its new token pair.
type LoginResult struct {
	Account *model.Account
	Tokens  *model.TokenPair
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	FullName      string
	Email         string
	MobileNumber  string
	VillageName   string
	Password      string
	ReturnURLBase string
}

// PromoteParams defines the account that PromoteSuperAdmin creates or promotes.
type PromoteParams struct {
	FullName     string
	Email        string
	MobileNumber string
	VillageName  string
	Password     string
}

// dummyPassword is verified against when a login names an unknown email so that both
// failure paths spend the same hashing time.
const dummyPassword = "vaadi-timing-equalizer"

type authUsecase struct {
	accountRepo    repository.AccountRepository
	sessions       SessionUsecase
	verifications  VerificationUsecase
	hasher         security.PasswordHasher
	dispatcher     NotificationDispatcher
	authServiceCfg *config.AuthServiceConfig
	logger         *zerolog.Logger
	now            func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

func NewAuthUsecase(
	accountRepo repository.AccountRepository,
	sessions SessionUsecase,
	verifications VerificationUsecase,
	hasher security.PasswordHasher,
	dispatcher NotificationDispatcher,
	authServiceCfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) AuthUsecase {
	return &authUsecase{
		accountRepo:    accountRepo,
		sessions:       sessions,
		verifications:  verifications,
		hasher:         hasher,
		dispatcher:     dispatcher,
		authServiceCfg: authServiceCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*model.Account, error) {
	params.FullName = strings.TrimSpace(params.FullName)
	params.Email = normalizeEmail(params.Email)
	params.MobileNumber = strings.TrimSpace(params.MobileNumber)
	params.VillageName = strings.TrimSpace(params.VillageName)

	if params.FullName == "" || params.Email == "" || params.MobileNumber == "" ||
		params.VillageName == "" || params.Password == "" {
		return nil, validationError("all fields are required")
	}
	if len(params.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := u.accountRepo.GetAccountByEmailOrMobile(ctx, params.Email, params.MobileNumber); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, internalError(u.logger, err, "failed to check for existing account")
	}

	passwordHash, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, internalError(u.logger, err, "failed to hash password")
	}

	account, err := u.accountRepo.CreateAccount(ctx, &model.Account{
		FullName:     params.FullName,
		Email:        params.Email,
		MobileNumber: params.MobileNumber,
		VillageName:  params.VillageName,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Verified:     false,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		return nil, internalError(u.logger, err, "failed to create account")
	}

	// The account is committed at this point; the verification email is best effort and
	// can be requested again through ResendVerification.
	rawToken, err := u.verifications.IssueVerification(ctx, account.ID.Hex())
	if err != nil {
		u.logger.Error().Err(err).Str("account_id", account.ID.Hex()).Msg("failed to issue verification token")
		return account, nil
	}

	u.dispatcher.Dispatch(ctx, model.Notification{
		Kind:           model.NotificationVerification,
		RecipientEmail: account.Email,
		RecipientName:  account.FullName,
		RawToken:       rawToken,
		ReturnURLBase:  returnURLOrDefault(params.ReturnURLBase, u.authServiceCfg.AppBaseURL),
	})

	return account, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	email := normalizeEmail(params.Email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	if params.Password == "" {
		return nil, ErrMissingPassword
	}

	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			u.burnPasswordCheck(params.Password)
			return nil, ErrUnauthorized
		}
		return nil, internalError(u.logger, err, "failed to load account for login")
	}

	if ok, err := u.hasher.Verify(params.Password, account.PasswordHash); err != nil {
		return nil, internalError(u.logger, err, "failed to verify password")
	} else if !ok {
		return nil, ErrUnauthorized
	}

	now := u.now()
	if err := u.accountRepo.UpdateLastLogin(ctx, account.ID.Hex(), now); err != nil {
		return nil, internalError(u.logger, err, "failed to update last login")
	}
	account.LastLoginAt = &now

	tokens, err := u.sessions.IssuePair(ctx, account)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

func (u *authUsecase) Logout(ctx context.Context, accountID string) error {
	return u.sessions.Revoke(ctx, accountID)
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	return u.sessions.Rotate(ctx, strings.TrimSpace(refreshToken))
}

func (u *authUsecase) CurrentAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := u.accountRepo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, bson.ErrInvalidHex) {
			return nil, ErrUnauthorized
		}
		return nil, internalError(u.logger, err, "failed to load current account")
	}

	return account, nil
}

func (u *authUsecase) PromoteSuperAdmin(ctx context.Context, params PromoteParams) (*model.Account, error) {
	email := normalizeEmail(params.Email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	if len(params.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	passwordHash, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, internalError(u.logger, err, "failed to hash password")
	}

	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, internalError(u.logger, err, "failed to load account for promotion")
	}

	if account == nil {
		if strings.TrimSpace(params.FullName) == "" || strings.TrimSpace(params.MobileNumber) == "" {
			return nil, validationError("full name and mobile number are required to create a super admin")
		}

		created, err := u.accountRepo.CreateAccount(ctx, &model.Account{
			FullName:     strings.TrimSpace(params.FullName),
			Email:        email,
			MobileNumber: strings.TrimSpace(params.MobileNumber),
			VillageName:  strings.TrimSpace(params.VillageName),
			PasswordHash: passwordHash,
			Role:         model.RoleSuperAdmin,
			Verified:     true,
		})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrConflict
			}
			return nil, internalError(u.logger, err, "failed to create super admin")
		}

		u.logger.Info().Str("account_id", created.ID.Hex()).Msg("super admin created")
		return created, nil
	}

	role := model.RoleSuperAdmin
	updated, err := u.accountRepo.UpdateAccount(ctx, account.ID.Hex(), repository.UpdateAccountParams{
		PasswordHash: &passwordHash,
		Role:         &role,
	})
	if err != nil {
		return nil, internalError(u.logger, err, "failed to promote account")
	}

	// A new password ends every session opened with the old one.
	if err := u.sessions.Revoke(ctx, updated.ID.Hex()); err != nil {
		u.logger.Error().Err(err).Str("account_id", updated.ID.Hex()).Msg("failed to revoke sessions after promotion")
	}

	u.logger.Info().Str("account_id", updated.ID.Hex()).Msg("account promoted to super admin")
	return updated, nil
}

func (u *authUsecase) burnPasswordCheck(password string) {
	u.dummyHashOnce.Do(func() {
		hash, err := u.hasher.Hash(dummyPassword)
		if err != nil {
			u.logger.Error().Err(err).Msg("failed to prepare dummy password hash")
			return
		}
		u.dummyHash = hash
	})

	if u.dummyHash != "" {
		_, _ = u.hasher.Verify(password, u.dummyHash)
	}
}

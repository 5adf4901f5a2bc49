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
	"github.com/vasapolrittideah/vaadi-booking-api/shared/auth"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/ratelimit"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

// --- accounts ---

// memoryAccountRepo mirrors the single-document atomicity of the Mongo repository.
type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[bson.ObjectID]*model.Account

	failWith error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[bson.ObjectID]*model.Account)}
}

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	if a.VerificationTokenHash != nil {
		v := *a.VerificationTokenHash
		c.VerificationTokenHash = &v
	}
	if a.VerificationExpiresAt != nil {
		v := *a.VerificationExpiresAt
		c.VerificationExpiresAt = &v
	}
	if a.RefreshTokenHash != nil {
		v := *a.RefreshTokenHash
		c.RefreshTokenHash = &v
	}
	if a.LastLoginAt != nil {
		v := *a.LastLoginAt
		c.LastLoginAt = &v
	}
	return &c
}

func (r *memoryAccountRepo) byID(id string) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	account, ok := r.accounts[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return account, nil
}

func (r *memoryAccountRepo) CreateAccount(_ context.Context, account *model.Account) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	for _, existing := range r.accounts {
		if existing.Email == account.Email || existing.MobileNumber == account.MobileNumber {
			return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
		}
	}

	now := time.Now()
	account.ID = bson.NewObjectID()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = cloneAccount(account)

	return account, nil
}

func (r *memoryAccountRepo) GetAccount(_ context.Context, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	account, err := r.byID(id)
	if err != nil {
		return nil, err
	}
	return cloneAccount(account), nil
}

func (r *memoryAccountRepo) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	for _, account := range r.accounts {
		if account.Email == email {
			return cloneAccount(account), nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memoryAccountRepo) GetAccountByEmailOrMobile(_ context.Context, email, mobile string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	for _, account := range r.accounts {
		if account.Email == email || account.MobileNumber == mobile {
			return cloneAccount(account), nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memoryAccountRepo) UpdateAccount(
	_ context.Context,
	id string,
	params repository.UpdateAccountParams,
) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	account, err := r.byID(id)
	if err != nil {
		return nil, err
	}
	if params.PasswordHash != nil {
		account.PasswordHash = *params.PasswordHash
	}
	if params.Role != nil {
		account.Role = *params.Role
	}
	if params.Verified != nil {
		account.Verified = *params.Verified
	}
	account.UpdatedAt = time.Now()
	return cloneAccount(account), nil
}

func (r *memoryAccountRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, err := r.byID(id)
	if err != nil {
		return err
	}
	account.LastLoginAt = &at
	return nil
}

func (r *memoryAccountRepo) SetRefreshTokenHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}

	account, err := r.byID(id)
	if err != nil {
		return err
	}
	account.RefreshTokenHash = &hash
	return nil
}

func (r *memoryAccountRepo) SwapRefreshTokenHash(_ context.Context, id, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, err := r.byID(id)
	if err != nil {
		return err
	}
	if account.RefreshTokenHash == nil || *account.RefreshTokenHash != expected {
		return mongo.ErrNoDocuments
	}
	account.RefreshTokenHash = &next
	return nil
}

func (r *memoryAccountRepo) ClearRefreshTokenHash(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, err := r.byID(id)
	if err != nil {
		return err
	}
	account.RefreshTokenHash = nil
	return nil
}

func (r *memoryAccountRepo) SetVerificationToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, err := r.byID(id)
	if err != nil {
		return err
	}
	account.VerificationTokenHash = &hash
	account.VerificationExpiresAt = &expiresAt
	return nil
}

func (r *memoryAccountRepo) ConsumeVerificationToken(_ context.Context, hash string, now time.Time) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.VerificationTokenHash == nil || *account.VerificationTokenHash != hash {
			continue
		}
		if account.VerificationExpiresAt == nil || !account.VerificationExpiresAt.After(now) {
			continue
		}
		account.Verified = true
		account.VerificationTokenHash = nil
		account.VerificationExpiresAt = nil
		return cloneAccount(account), nil
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memoryAccountRepo) ClearExpiredVerificationTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for _, account := range r.accounts {
		if account.VerificationExpiresAt != nil && !account.VerificationExpiresAt.After(now) {
			account.VerificationTokenHash = nil
			account.VerificationExpiresAt = nil
			cleared++
		}
	}
	return cleared, nil
}

func (r *memoryAccountRepo) get(id bson.ObjectID) *model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAccount(r.accounts[id])
}

// --- reset tokens ---

type memoryResetTokenRepo struct {
	mu     sync.Mutex
	tokens []*model.PasswordResetToken

	failCreate error
}

func (r *memoryResetTokenRepo) CreateToken(_ context.Context, token *model.PasswordResetToken) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return nil, r.failCreate
	}

	token.ID = bson.NewObjectID()
	token.CreatedAt = time.Now()
	c := *token
	r.tokens = append(r.tokens, &c)
	return token, nil
}

func (r *memoryResetTokenRepo) ConsumeToken(_ context.Context, hash string, now time.Time) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, token := range r.tokens {
		if token.TokenHash == hash && token.ExpiresAt.After(now) {
			r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)
			return token, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memoryResetTokenRepo) DeleteTokensByAccount(_ context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	objectID, err := bson.ObjectIDFromHex(accountID)
	if err != nil {
		return 0, err
	}

	kept := r.tokens[:0]
	var deleted int64
	for _, token := range r.tokens {
		if token.AccountID == objectID {
			deleted++
			continue
		}
		kept = append(kept, token)
	}
	r.tokens = kept
	return deleted, nil
}

func (r *memoryResetTokenRepo) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tokens[:0]
	var deleted int64
	for _, token := range r.tokens {
		if !token.ExpiresAt.After(now) {
			deleted++
			continue
		}
		kept = append(kept, token)
	}
	r.tokens = kept
	return deleted, nil
}

func (r *memoryResetTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// --- collaborators ---

// plainHasher keeps tests fast; it is not a real password hash.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, "plain$")
	if !ok {
		return false, security.ErrMalformedHash
	}
	return stored == password, nil
}

type recordingDispatcher struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n model.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, n)
}

func (d *recordingDispatcher) all() []model.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Notification(nil), d.notifications...)
}

type stubLimiter struct{ err error }

func (l stubLimiter) Allow(context.Context, string) error { return l.err }

var _ ratelimit.Limiter = stubLimiter{}

var errStorage = errors.New("connection reset by peer")

// --- wiring ---

func testConfig() *config.AuthServiceConfig {
	return &config.AuthServiceConfig{
		AppBaseURL: "http://localhost:4200",
		Token: config.TokenConfig{
			Issuer:                      "vaadi-test",
			Audience:                    "vaadi-test",
			AccessTokenSecret:           "access-secret",
			AccessTokenExpiresIn:        15 * time.Minute,
			RefreshTokenSecret:          "refresh-secret",
			RefreshTokenExpiresIn:       7 * 24 * time.Hour,
			VerificationTokenExpiresIn:  24 * time.Hour,
			PasswordResetTokenExpiresIn: time.Hour,
		},
	}
}

type testEnv struct {
	cfg          *config.AuthServiceConfig
	accounts     *memoryAccountRepo
	resetTokens  *memoryResetTokenRepo
	dispatcher   *recordingDispatcher
	jwtAuth      auth.JWTAuthenticator
	sessions     *sessionUsecase
	verification *verificationUsecase
	reset        *passwordResetUsecase
	auth         *authUsecase
}

func newTestEnv() *testEnv {
	logger := zerolog.Nop()
	cfg := testConfig()
	accounts := newMemoryAccountRepo()
	resetTokens := &memoryResetTokenRepo{}
	dispatcher := &recordingDispatcher{}
	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer)

	sessions := NewSessionUsecase(accounts, jwtAuth, cfg, &logger).(*sessionUsecase)
	verification := NewVerificationUsecase(accounts, dispatcher, ratelimit.Noop{}, cfg, &logger).(*verificationUsecase)
	reset := NewPasswordResetUsecase(accounts, resetTokens, plainHasher{}, dispatcher, ratelimit.Noop{}, cfg, &logger).(*passwordResetUsecase)
	authUC := NewAuthUsecase(accounts, sessions, verification, plainHasher{}, dispatcher, cfg, &logger).(*authUsecase)

	return &testEnv{
		cfg:          cfg,
		accounts:     accounts,
		resetTokens:  resetTokens,
		dispatcher:   dispatcher,
		jwtAuth:      jwtAuth,
		sessions:     sessions,
		verification: verification,
		reset:        reset,
		auth:         authUC,
	}
}

func (e *testEnv) register(email, mobile, password string) (*model.Account, error) {
	return e.auth.Register(context.Background(), RegisterParams{
		FullName:     "Asha Patel",
		Email:        email,
		MobileNumber: mobile,
		VillageName:  "Rampur",
		Password:     password,
	})
}

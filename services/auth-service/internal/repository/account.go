package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
)

// AccountRepository defines the interface for account-related database operations.
// Lookups that find nothing return mongo.ErrNoDocuments, including conditional
// updates whose filter did not match.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByEmailOrMobile(ctx context.Context, email, mobileNumber string) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) (*model.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// SetRefreshTokenHash overwrites the stored refresh token digest.
	SetRefreshTokenHash(ctx context.Context, id, hash string) error

	// SwapRefreshTokenHash replaces the stored digest with next only if it still equals expected.
	SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error

	// ClearRefreshTokenHash removes the stored digest.
	ClearRefreshTokenHash(ctx context.Context, id string) error

	// SetVerificationToken stores a pending email verification digest, replacing any previous one.
	SetVerificationToken(ctx context.Context, id, hash string, expiresAt time.Time) error

	// ConsumeVerificationToken marks the account holding a live token with this digest as
	// verified and clears the token in one atomic update.
	ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*model.Account, error)

	// ClearExpiredVerificationTokens unsets verification tokens that expired before now.
	ClearExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)
}

// UpdateAccountParams defines the optional parameters for updating an account.
// Only the fields that are not nil will be updated.
type UpdateAccountParams struct {
	PasswordHash *string
	Role         *model.Role
	Verified     *bool
}

const accountCollection = "accounts"

type accountMongoRepository struct {
	db *mongo.Database
}

// NewAccountMongoRepository creates a new MongoDB repository for accounts and ensures its indexes.
func NewAccountMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) AccountRepository {
	collection := db.Collection(accountCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "mobile_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "verification_token_hash", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create account indexes")
	}

	return &accountMongoRepository{db: db}
}

func (r *accountMongoRepository) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := r.db.Collection(accountCollection).InsertOne(ctx, account)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		account.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return account, nil
}

func (r *accountMongoRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *accountMongoRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *accountMongoRepository) GetAccountByEmailOrMobile(
	ctx context.Context,
	email, mobileNumber string,
) (*model.Account, error) {
	return r.findOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"email": email},
			bson.M{"mobile_number": mobileNumber},
		},
	})
}

func (r *accountMongoRepository) UpdateAccount(
	ctx context.Context,
	id string,
	params UpdateAccountParams,
) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	// Build update query
	updateMap := bson.M{}
	if params.PasswordHash != nil {
		updateMap["password_hash"] = *params.PasswordHash
	}
	if params.Role != nil {
		updateMap["role"] = *params.Role
	}
	if params.Verified != nil {
		updateMap["verified"] = *params.Verified
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no account fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(accountCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{}, bson.M{
		"$set": bson.M{"last_login_at": at, "updated_at": time.Now()},
	})
}

func (r *accountMongoRepository) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return r.updateByID(ctx, id, bson.M{}, bson.M{
		"$set": bson.M{"refresh_token_hash": hash, "updated_at": time.Now()},
	})
}

func (r *accountMongoRepository) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error {
	return r.updateByID(ctx, id, bson.M{"refresh_token_hash": expected}, bson.M{
		"$set": bson.M{"refresh_token_hash": next, "updated_at": time.Now()},
	})
}

func (r *accountMongoRepository) ClearRefreshTokenHash(ctx context.Context, id string) error {
	return r.updateByID(ctx, id, bson.M{}, bson.M{
		"$unset": bson.M{"refresh_token_hash": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	})
}

func (r *accountMongoRepository) SetVerificationToken(
	ctx context.Context,
	id, hash string,
	expiresAt time.Time,
) error {
	return r.updateByID(ctx, id, bson.M{}, bson.M{
		"$set": bson.M{
			"verification_token_hash": hash,
			"verification_expires_at": expiresAt,
			"updated_at":              time.Now(),
		},
	})
}

func (r *accountMongoRepository) ConsumeVerificationToken(
	ctx context.Context,
	hash string,
	now time.Time,
) (*model.Account, error) {
	result := r.db.Collection(accountCollection).FindOneAndUpdate(
		ctx,
		bson.M{
			"verification_token_hash": hash,
			"verification_expires_at": bson.M{"$gt": now},
		},
		bson.M{
			"$set":   bson.M{"verified": true, "updated_at": now},
			"$unset": bson.M{"verification_token_hash": "", "verification_expires_at": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) ClearExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Collection(accountCollection).UpdateMany(
		ctx,
		bson.M{"verification_expires_at": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"verification_token_hash": "", "verification_expires_at": ""}},
	)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (r *accountMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	result := r.db.Collection(accountCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

// updateByID applies update to the account with the given id when filter also matches.
func (r *accountMongoRepository) updateByID(ctx context.Context, id string, filter, update bson.M) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	filter["_id"] = objectID

	result, err := r.db.Collection(accountCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
)

// PasswordResetTokenRepository defines the interface for password reset token operations.
type PasswordResetTokenRepository interface {
	// CreateToken creates a new password reset token.
	CreateToken(ctx context.Context, token *model.PasswordResetToken) (*model.PasswordResetToken, error)

	// ConsumeToken atomically removes and returns the live token with the given digest.
	// Expired tokens are never returned even if the TTL monitor has not removed them yet.
	ConsumeToken(ctx context.Context, hash string, now time.Time) (*model.PasswordResetToken, error)

	// DeleteTokensByAccount removes every token issued to an account.
	DeleteTokensByAccount(ctx context.Context, accountID string) (int64, error)

	// DeleteExpiredTokens removes expired tokens from the database.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

const passwordResetTokenCollection = "password_reset_tokens"

type passwordResetTokenMongoRepository struct {
	db *mongo.Database
}

// NewPasswordResetTokenMongoRepository creates a new MongoDB repository for password reset tokens.
func NewPasswordResetTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) PasswordResetTokenRepository {
	collection := db.Collection(passwordResetTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create password reset token indexes")
	}

	return &passwordResetTokenMongoRepository{
		db: db,
	}
}

func (r *passwordResetTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.PasswordResetToken,
) (*model.PasswordResetToken, error) {
	token.CreatedAt = time.Now()

	result, err := r.db.Collection(passwordResetTokenCollection).InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		token.ID = objectID
	}

	return token, nil
}

func (r *passwordResetTokenMongoRepository) ConsumeToken(
	ctx context.Context,
	hash string,
	now time.Time,
) (*model.PasswordResetToken, error) {
	filter := bson.M{
		"token_hash": hash,
		"expires_at": bson.M{"$gt": now},
	}

	var token model.PasswordResetToken
	err := r.db.Collection(passwordResetTokenCollection).FindOneAndDelete(ctx, filter).Decode(&token)
	if err != nil {
		return nil, err
	}

	return &token, nil
}

func (r *passwordResetTokenMongoRepository) DeleteTokensByAccount(ctx context.Context, accountID string) (int64, error) {
	objectID, err := bson.ObjectIDFromHex(accountID)
	if err != nil {
		return 0, err
	}

	result, err := r.db.Collection(passwordResetTokenCollection).DeleteMany(ctx, bson.M{"account_id": objectID})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func (r *passwordResetTokenMongoRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"expires_at": bson.M{"$lte": now},
	}

	result, err := r.db.Collection(passwordResetTokenCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PasswordResetToken is a single-use password reset grant. Only the SHA-256 digest
// of the emailed token is stored.
type PasswordResetToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	AccountID bson.ObjectID `bson:"account_id"`
	TokenHash string        `bson:"token_hash"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

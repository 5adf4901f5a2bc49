package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "Super Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Account represents a registered user together with the credential state owned by
// the auth service. Secret fields only ever hold digests, never raw tokens.
type Account struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	FullName     string        `bson:"full_name"`
	Email        string        `bson:"email"`
	MobileNumber string        `bson:"mobile_number"`
	VillageName  string        `bson:"village_name"`
	PasswordHash string        `bson:"password_hash"`
	Role         Role          `bson:"role"`
	Verified     bool          `bson:"verified"`

	VerificationTokenHash *string    `bson:"verification_token_hash,omitempty"`
	VerificationExpiresAt *time.Time `bson:"verification_expires_at,omitempty"`
	RefreshTokenHash      *string    `bson:"refresh_token_hash,omitempty"`

	LastLoginAt *time.Time `bson:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

// PublicAccount is the view of an account that is safe to return to clients.
type PublicAccount struct {
	ID           string     `json:"_id"`
	FullName     string     `json:"fullName"`
	Email        string     `json:"email"`
	MobileNumber string     `json:"mobileNumber"`
	VillageName  string     `json:"villageName"`
	Role         Role       `json:"role"`
	Verified     bool       `json:"isEmailVerified"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Public strips password and token material from the account.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:           a.ID.Hex(),
		FullName:     a.FullName,
		Email:        a.Email,
		MobileNumber: a.MobileNumber,
		VillageName:  a.VillageName,
		Role:         a.Role,
		Verified:     a.Verified,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

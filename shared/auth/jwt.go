package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens so that one can never be
// presented in place of the other.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrUnexpectedType  = errors.New("unexpected token type")
	ErrMissingSubject  = errors.New("token has no subject")
	ErrEmptySigningKey = errors.New("signing secret is empty")
)

// Claims is the claim set carried by both access and refresh tokens.
type Claims struct {
	Role string    `json:"role,omitempty"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// JWTAuthenticator represents a JWT based authenticator.
type JWTAuthenticator struct {
	audience string
	issuer   string
}

// NewJWTAuthenticator creates a new JWTAuthenticator instance.
func NewJWTAuthenticator(audience, issuer string) JWTAuthenticator {
	return JWTAuthenticator{
		audience: audience,
		issuer:   issuer,
	}
}

// NewClaims builds a claim set for subject valid for expiresIn from now.
// Every call gets a fresh jti so two tokens minted within the same second still differ.
func (a *JWTAuthenticator) NewClaims(subject, role string, typ TokenType, now time.Time, expiresIn time.Duration) Claims {
	return Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

// GenerateToken generates a JWT token with the given claims and secret.
// This is generic and accepts any type that implements jwt.Claims.
func (a *JWTAuthenticator) GenerateToken(claims jwt.Claims, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySigningKey
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// ValidateTokenWithClaims validates a JWT token and parses it into the provided claims type.
// The claims parameter should be a pointer to a struct that implements jwt.Claims.
func (a *JWTAuthenticator) ValidateTokenWithClaims(tokenString, secret string, claims jwt.Claims) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithAudience(a.audience),
		jwt.WithIssuer(a.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return token, nil
}

// ParseClaims validates tokenString and checks that it is of the expected type and
// names a subject.
func (a *JWTAuthenticator) ParseClaims(tokenString, secret string, typ TokenType) (*Claims, error) {
	claims := &Claims{}
	if _, err := a.ValidateTokenWithClaims(tokenString, secret, claims); err != nil {
		return nil, err
	}

	if claims.Type != typ {
		return nil, ErrUnexpectedType
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

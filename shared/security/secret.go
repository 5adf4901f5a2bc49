package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// secretSize is the number of random bytes behind every single-use token.
const secretSize = 32

// NewRawSecret returns a 256-bit random secret encoded as 64 lowercase hex characters.
// The raw value is only ever handed to the recipient; persist HashSecret(raw) instead.
func NewRawSecret() (string, error) {
	bytes := make([]byte, secretSize)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashSecret returns the SHA-256 digest of raw as 64 lowercase hex characters.
// The same input always yields the same digest so it can be used as a lookup key.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

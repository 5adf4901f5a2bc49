package security

import (
	"errors"

	"github.com/matthewhartstonge/argon2"
)

// ErrMalformedHash is returned when a stored password hash cannot be decoded.
var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Argon2Hasher is an argon2id PasswordHasher. Each call to Hash draws a fresh salt
// which is embedded in the encoded output together with the cost parameters.
type Argon2Hasher struct {
	config argon2.Config
}

// NewArgon2Hasher creates a hasher using the library defaults (argon2id, 64 MiB, t=3).
func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{config: argon2.DefaultConfig()}
}

// NewArgon2HasherWithConfig creates a hasher with explicit cost parameters.
func NewArgon2HasherWithConfig(cfg argon2.Config) *Argon2Hasher {
	return &Argon2Hasher{config: cfg}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Verify recomputes the hash with the parameters embedded in encodedHash and compares
// in constant time. A hash that cannot be decoded yields ErrMalformedHash.
func (h *Argon2Hasher) Verify(password, encodedHash string) (bool, error) {
	if _, err := argon2.Decode([]byte(encodedHash)); err != nil {
		return false, errors.Join(ErrMalformedHash, err)
	}

	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
	if err != nil {
		return false, errors.Join(ErrMalformedHash, err)
	}

	return ok, nil
}

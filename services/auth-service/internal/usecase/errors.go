package usecase

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrValidation reports malformed or missing input. Its message is safe to show.
	ErrValidation = errors.New("validation error")
	// ErrConflict reports a duplicate email or mobile number.
	ErrConflict = errors.New("user with email or mobile number already exists")
	// ErrUnauthorized covers bad credentials and bad, expired or superseded session tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is only used where disclosing existence is acceptable.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOrExpired is the single failure for wrong, expired or consumed single-use tokens.
	ErrInvalidOrExpired = errors.New("invalid or expired token")
	// ErrRateLimited reports too many requests for the same identifier.
	ErrRateLimited = errors.New("too many requests")
	// ErrInternal hides storage, hashing and signing faults.
	ErrInternal = errors.New("something went wrong")
)

var (
	ErrWeakPassword     = validationError("password must be at least %d characters", minPasswordLength)
	ErrAlreadyVerified  = validationError("email is already verified")
	ErrMissingToken     = validationError("token is required")
	ErrMissingEmail     = validationError("email is required")
	ErrMissingPassword  = validationError("password is required")
	ErrMissingAccountID = validationError("account id is required")
)

const minPasswordLength = 6

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// internalError logs the underlying fault and returns the generic ErrInternal.
func internalError(logger *zerolog.Logger, err error, msg string) error {
	logger.Error().Err(err).Msg(msg)
	return ErrInternal
}

package interceptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vasapolrittideah/vaadi-booking-api/shared/auth"
)

type contextKey struct{}

var UserClaimsKey = contextKey{}

// AccessTokenCookie is the cookie consulted when no Authorization header is sent.
const AccessTokenCookie = "accessToken"

// AccessVerifier validates an access token and returns its claims.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// NewJWTMiddleware rejects requests without a valid access token and stores the
// verified claims in the request context under UserClaimsKey.
func NewJWTMiddleware(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			claims, err := verifier.VerifyAccess(tokenString)
			if err != nil {
				writeUnauthorized(w, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by NewJWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*auth.Claims)
	return claims, ok
}

func extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

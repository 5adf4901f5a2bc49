package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/vaadi-booking-api/shared/interceptor"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/observability"
)

const requestIDHeader = "X-Request-ID"

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterDeps are the collaborators NewRouter wires together.
type RouterDeps struct {
	Handler      *AuthHTTPHandler
	Verifier     interceptor.AccessVerifier
	HealthChecks map[string]HealthCheck
	// NotificationFailures, when set, reports emails dropped or failed since startup.
	NotificationFailures func() uint64
	Reporter             observability.Reporter
	Logger               *zerolog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(recoverer(deps.Logger, deps.Reporter))

	r.Get("/healthz", healthHandler(deps.HealthChecks, deps.NotificationFailures))

	h := deps.Handler
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.Get("/verify-email", h.VerifyEmail)
		r.Post("/resend-verification", h.ResendVerification)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(interceptor.NewJWTMiddleware(deps.Verifier))
			r.Post("/logout", h.Logout)
			r.Get("/current-user", h.CurrentUser)
		})
	})

	return r
}

func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("ip", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func recoverer(logger *zerolog.Logger, reporter observability.Reporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				logger.Error().Err(err).Str("path", r.URL.Path).Bytes("stack", debug.Stack()).Msg("panic recovered")
				if reporter != nil {
					reporter.Report(err, map[string]string{"path": r.URL.Path, "method": r.Method})
				}

				writeError(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(checks map[string]HealthCheck, notificationFailures func() uint64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				components[name] = "down"
				continue
			}
			components[name] = "up"
		}

		body := map[string]any{
			"status":     "ok",
			"time":       time.Now().UTC().Format(time.RFC3339),
			"components": components,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if notificationFailures != nil {
			body["notificationFailures"] = notificationFailures()
		}

		writeJSON(w, status, body)
	}
}

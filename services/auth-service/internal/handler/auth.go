package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/interceptor"
)

const refreshTokenCookie = "refreshToken"

const forgotPasswordMessage = "If an account with that email exists, we have sent a password reset link."

type AuthHTTPHandler struct {
	authUsecase          usecase.AuthUsecase
	verificationUsecase  usecase.VerificationUsecase
	passwordResetUsecase usecase.PasswordResetUsecase
	authServiceCfg       *config.AuthServiceConfig
	validator            *requestValidator
	logger               *zerolog.Logger
}

func NewAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	verificationUsecase usecase.VerificationUsecase,
	passwordResetUsecase usecase.PasswordResetUsecase,
	authServiceCfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		authUsecase:          authUsecase,
		verificationUsecase:  verificationUsecase,
		passwordResetUsecase: passwordResetUsecase,
		authServiceCfg:       authServiceCfg,
		validator:            newRequestValidator(),
		logger:               logger,
	}
}

// bind decodes and validates a request body, writing a 400 on failure.
func (h *AuthHTTPHandler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *AuthHTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	account, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		FullName:      req.FullName,
		Email:         req.Email,
		MobileNumber:  req.MobileNumber,
		VillageName:   req.VillageName,
		Password:      req.Password,
		ReturnURLBase: h.returnURL(r, req.FrontendURL),
	})
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, account.Public(),
		"User registered successfully. Please check your email to verify your account.")
}

func (h *AuthHTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	h.setSessionCookies(w, result.Tokens)
	writeSuccess(w, http.StatusOK, LoginResponse{
		User:         result.Account.Public(),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *AuthHTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := interceptor.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.authUsecase.Logout(r.Context(), claims.Subject); err != nil {
		writeUsecaseError(w, err)
		return
	}

	h.clearSessionCookies(w)
	writeSuccess(w, http.StatusOK, nil, "User logged out")
}

func (h *AuthHTTPHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		req.RefreshToken = cookie.Value
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	tokens, err := h.authUsecase.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	writeSuccess(w, http.StatusOK, tokens, "Access token refreshed")
}

func (h *AuthHTTPHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := interceptor.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	account, err := h.authUsecase.CurrentAccount(r.Context(), claims.Subject)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account.Public(), "User fetched successfully")
}

func (h *AuthHTTPHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "verification token is required")
		return
	}

	if err := h.verificationUsecase.RedeemVerification(r.Context(), token); err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Email verified successfully")
}

func (h *AuthHTTPHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !h.bind(w, r, &req) {
		return
	}

	err := h.verificationUsecase.ResendVerification(r.Context(), req.Email, h.returnURL(r, req.FrontendURL))
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Verification email sent successfully. Please check your inbox.")
}

// ForgotPassword answers every well-formed request with the same body so that the
// response does not reveal whether the email is registered.
func (h *AuthHTTPHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	err := h.passwordResetUsecase.RequestPasswordReset(r.Context(), req.Email, h.returnURL(r, req.FrontendURL))
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, forgotPasswordMessage)
}

func (h *AuthHTTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.passwordResetUsecase.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Password reset successfully")
}

// returnURL picks the link base for emails from the payload or the Origin header.
// Bases outside the allow list are dropped and the configured default applies.
func (h *AuthHTTPHandler) returnURL(r *http.Request, requested string) string {
	candidate := strings.TrimSpace(requested)
	if candidate == "" {
		candidate = r.Header.Get("Origin")
	}
	candidate = strings.TrimRight(strings.TrimSpace(candidate), "/")
	if candidate == "" {
		return ""
	}

	allowed := slices.ContainsFunc(h.authServiceCfg.HTTP.AllowedReturnURLs, func(base string) bool {
		return strings.TrimRight(strings.TrimSpace(base), "/") == candidate
	})
	if !allowed {
		h.logger.Warn().Str("return_url", candidate).Msg("ignoring return url outside allow list")
		return ""
	}

	return candidate
}

func (h *AuthHTTPHandler) setSessionCookies(w http.ResponseWriter, tokens *model.TokenPair) {
	http.SetCookie(w, h.cookie(interceptor.AccessTokenCookie, tokens.AccessToken, h.authServiceCfg.Token.AccessTokenExpiresIn))
	http.SetCookie(w, h.cookie(refreshTokenCookie, tokens.RefreshToken, h.authServiceCfg.Token.RefreshTokenExpiresIn))
}

func (h *AuthHTTPHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(interceptor.AccessTokenCookie, "", -1))
	http.SetCookie(w, h.cookie(refreshTokenCookie, "", -1))
}

// cookie builds a session cookie; a negative ttl expires it immediately.
func (h *AuthHTTPHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.authServiceCfg.HTTP.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

package handler

import "github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"

type RegisterRequest struct {
	FullName     string `json:"fullName"     validate:"required"`
	Email        string `json:"email"        validate:"required,email"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
	VillageName  string `json:"villageName"  validate:"required"`
	Password     string `json:"password"     validate:"required,min=6"`
	FrontendURL  string `json:"frontendUrl"  validate:"omitempty,url"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         model.PublicAccount `json:"user"`
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ResendVerificationRequest struct {
	Email       string `json:"email"       validate:"required,email"`
	FrontendURL string `json:"frontendUrl" validate:"omitempty,url"`
}

type ForgotPasswordRequest struct {
	Email       string `json:"email"       validate:"required,email"`
	FrontendURL string `json:"frontendUrl" validate:"omitempty,url"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"       validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

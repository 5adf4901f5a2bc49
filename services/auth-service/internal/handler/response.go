package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/usecase"
)

type response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, status, response{StatusCode: status, Data: data, Message: message, Success: true})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{StatusCode: status, Message: message, Success: false})
}

// writeUsecaseError maps usecase sentinels to HTTP statuses. Only validation and
// conflict messages are passed through; everything else uses a fixed message.
func writeUsecaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, usecase.ErrConflict):
		writeError(w, http.StatusConflict, usecase.ErrConflict.Error())
	case errors.Is(err, usecase.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized request")
	case errors.Is(err, usecase.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, usecase.ErrInvalidOrExpired):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, usecase.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
	default:
		writeError(w, http.StatusInternalServerError, usecase.ErrInternal.Error())
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), usecase.ErrValidation.Error()+": ")
	if msg == "" {
		return usecase.ErrValidation.Error()
	}
	return msg
}

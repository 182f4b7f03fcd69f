package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
)

// Response is the envelope every account endpoint answers with.
type Response struct {
	Flag    bool   `json:"flag"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Response
	AccountCreated bool `json:"accountCreated,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Flag: status < http.StatusBadRequest, Message: message})
}

// writeError maps a service error to a status code and message. Only
// unexpected failures are logged as errors.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, Response{Message: ve.Message, Field: ve.Field})
		return
	}

	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		writeMessage(w, http.StatusConflict, "User already registered")
	case errors.Is(err, domain.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrVerificationTokenNotFound):
		writeMessage(w, http.StatusBadRequest, "Invalid verification token")
	case errors.Is(err, domain.ErrVerificationTokenExpired):
		writeMessage(w, http.StatusBadRequest, "Verification token has expired, please request a new one")
	case errors.Is(err, domain.ErrEmailAlreadyConfirmed):
		writeMessage(w, http.StatusBadRequest, "Email is already verified")
	case errors.Is(err, domain.ErrVerificationEmailFailed):
		logger.Error(r.Context(), "verification email not delivered", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusBadGateway, "Verification email could not be sent, please try again later")
	case errors.Is(err, domain.ErrInvalidRole):
		writeJSON(w, http.StatusBadRequest, Response{Message: "Role must be Admin or User", Field: "role"})
	case errors.Is(err, domain.ErrFavoriteNotFound):
		writeMessage(w, http.StatusNotFound, "Favorite not found")
	default:
		logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// loginError maps login failures to 401 with the message the storefront shows.
func loginError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeMessage(w, http.StatusUnauthorized, "User not found")
	case errors.Is(err, domain.ErrEmailNotVerified):
		writeMessage(w, http.StatusUnauthorized, "Please verify your email before logging in.")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email/password")
	case errors.Is(err, domain.ErrNoRoleAssigned):
		writeMessage(w, http.StatusUnauthorized, "User has no assigned roles")
	default:
		writeError(w, r, logger, err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

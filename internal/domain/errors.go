package domain

import (
	"errors"
	"fmt"
)

// Account errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already registered")
	ErrEmailNotVerified   = errors.New("please verify your email before logging in")
	ErrInvalidCredentials = errors.New("invalid email/password")
	ErrNoRoleAssigned     = errors.New("user has no assigned roles")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleNotFound       = errors.New("role not found")
)

// Session errors
var (
	ErrUnauthorized = errors.New("unauthorized")
)

// Email verification errors
var (
	ErrVerificationTokenNotFound = errors.New("invalid verification token")
	ErrVerificationTokenExpired  = errors.New("verification token has expired, please request a new one")
	ErrEmailAlreadyConfirmed     = errors.New("email is already verified")
	ErrVerificationEmailFailed   = errors.New("verification email could not be sent")
	ErrTokenCollision            = errors.New("verification token collision")
)

// Favorite errors
var (
	ErrFavoriteNotFound = errors.New("favorite not found")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err carries a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dom/autosalon/internal/domain"
)

const (
	maxNameLength     = 100
	maxEmailLength    = 254
	maxPasswordLength = 72
	maxVehicleIDLen   = 64
)

type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (in RegisterInput) normalize() RegisterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

// Validate checks the payload field by field
func (in RegisterInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("Name is required"),
			validation.Length(1, maxNameLength)),
		validation.Field(&in.Email,
			validation.Required.Error("Email is required"),
			validation.Length(3, maxEmailLength),
			is.Email.Error("Email is not a valid email address")),
		validation.Field(&in.Password,
			validation.By(notBlank("Password is required")),
			validation.Length(0, maxPasswordLength)),
		validation.Field(&in.ConfirmPassword,
			validation.By(stringEquals(in.Password, "Passwords do not match"))),
	)
	return fieldError(err, "name", "email", "password", "confirmPassword")
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.By(notBlank("Email is required"))),
		validation.Field(&in.Password, validation.By(notBlank("Password is required"))),
	)
	return fieldError(err, "email", "password")
}

type UpdateUserInput struct {
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Role  *domain.RoleName `json:"role,omitempty"`
}

func (in UpdateUserInput) normalize() UpdateUserInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func (in UpdateUserInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("Name is required"),
			validation.Length(1, maxNameLength)),
		validation.Field(&in.Email,
			validation.Required.Error("Email is required"),
			validation.Length(3, maxEmailLength),
			is.Email.Error("Email is not a valid email address")),
		validation.Field(&in.Role, validation.By(validRole)),
	)
	return fieldError(err, "name", "email", "role")
}

func validateVehicleID(vehicleID string) error {
	err := validation.Validate(strings.TrimSpace(vehicleID),
		validation.Required.Error("Vehicle id is required"),
		validation.Length(1, maxVehicleIDLen),
	)
	if err != nil {
		return domain.NewValidationError("vehicleId", err.Error())
	}
	return nil
}

func validateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required.Error("Email is required"),
		is.Email.Error("Email is not a valid email address"),
	)
	if err != nil {
		return domain.NewValidationError("email", err.Error())
	}
	return nil
}

func notBlank(message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(message)
		}
		return nil
	}
}

func stringEquals(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

func validRole(value interface{}) error {
	role, _ := value.(*domain.RoleName)
	if role == nil {
		return nil
	}
	if !role.IsValid() {
		return errors.New("Role must be Admin or User")
	}
	return nil
}

// fieldError converts ozzo errors into a single ValidationError for the
// first failing field in order.
func fieldError(err error, order ...string) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, field := range order {
			if fe, ok := errs[field]; ok && fe != nil {
				return domain.NewValidationError(field, fe.Error())
			}
		}
	}
	return domain.NewValidationError("", err.Error())
}

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dom/autosalon/internal/domain"
)

// Claims is the payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  domain.RoleName `json:"role"`
}

// UserID parses the subject claim
func (c *Claims) UserID() (uuid.UUID, error) {
	if c.Subject == "" {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// HasRole reports whether the token carries one of roles
func (c *Claims) HasRole(roles ...domain.RoleName) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Subject is the identity an access token is minted for.
type Subject struct {
	UserID uuid.UUID
	Name   string
	Email  string
	Role   domain.RoleName
}

// SubjectFor builds a token subject from a user and its effective role
func SubjectFor(user *domain.User, role domain.RoleName) Subject {
	return Subject{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   role,
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name                            string     `json:"name" gorm:"not null"`
	Email                           string     `json:"email" gorm:"not null"`
	PasswordHash                    string     `json:"-" gorm:"not null"`
	IsEmailConfirmed                bool       `json:"isEmailConfirmed" gorm:"not null;default:false"`
	EmailConfirmationToken          *string    `json:"-"`
	EmailConfirmationTokenCreatedAt *time.Time `json:"-"`
	CreatedAt                       time.Time  `json:"createdAt"`
	UpdatedAt                       time.Time  `json:"updatedAt"`
}

// HasPendingVerification reports whether a confirmation token is outstanding.
func (u *User) HasPendingVerification() bool {
	return !u.IsEmailConfirmed && u.EmailConfirmationToken != nil
}

// MarkEmailConfirmed applies the in-memory side of a successful verification.
// The confirmed flag and the token fields always change together.
func (u *User) MarkEmailConfirmed() {
	u.IsEmailConfirmed = true
	u.EmailConfirmationToken = nil
	u.EmailConfirmationTokenCreatedAt = nil
}

type RefreshToken struct {
	Token     string    `json:"-" gorm:"primaryKey"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Favorite links a user to a vehicle from the storefront catalogue.
// Vehicle ids are opaque to this service.
type Favorite struct {
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	VehicleID string    `json:"vehicleId" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
}

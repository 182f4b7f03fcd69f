package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoleName is the name of an authorization role
type RoleName string

const (
	RoleAdmin RoleName = "Admin"
	RoleUser  RoleName = "User"
)

// AllRoles contains every role a user can be assigned
var AllRoles = []RoleName{RoleAdmin, RoleUser}

// IsValid checks if a role name is known
func (r RoleName) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r RoleName) String() string {
	return string(r)
}

// Role is a role definition. Rows are created lazily the first time a role
// is assigned.
type Role struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      RoleName  `json:"name" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRoleAssignment is a role membership. The oldest membership is the
// effective role carried in access token claims.
type UserRoleAssignment struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserRoleAssignment) TableName() string {
	return "user_roles"
}

// EffectiveRole returns the first role of an ordered membership list.
func EffectiveRole(roles []RoleName) (RoleName, bool) {
	if len(roles) == 0 {
		return "", false
	}
	return roles[0], true
}

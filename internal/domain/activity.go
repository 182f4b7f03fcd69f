package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityType enumerates auth events recorded for the admin dashboard
type ActivityType string

const (
	ActivityUserRegistered   ActivityType = "user.registered"
	ActivityEmailVerified    ActivityType = "user.email_verified"
	ActivityVerificationSent ActivityType = "user.verification_sent"
	ActivityLoginSuccess     ActivityType = "auth.login.success"
	ActivityLoginFailure     ActivityType = "auth.login.failure"
	ActivityTokenRefreshed   ActivityType = "auth.token.refreshed"
	ActivityLogout           ActivityType = "auth.logout"
	ActivityUserUpdated      ActivityType = "user.updated"
	ActivityRoleChanged      ActivityType = "user.role_changed"
	ActivityUserDeleted      ActivityType = "user.deleted"
)

// AuthEvent is an audit record of something that happened to an account.
type AuthEvent struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Type       ActivityType      `json:"type" gorm:"not null;index"`
	UserID     *uuid.UUID        `json:"userId,omitempty" gorm:"type:uuid"`
	ActorID    *uuid.UUID        `json:"actorId,omitempty" gorm:"type:uuid"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	OccurredAt time.Time         `json:"occurredAt" gorm:"not null;index"`
}

// NewAuthEvent builds an event for userID. A nil uuid leaves the user unset.
func NewAuthEvent(eventType ActivityType, userID uuid.UUID, metadata map[string]any) *AuthEvent {
	event := &AuthEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Metadata:   datatypes.JSONMap(metadata),
		OccurredAt: time.Now().UTC(),
	}
	if userID != uuid.Nil {
		id := userID
		event.UserID = &id
	}
	if event.Metadata == nil {
		event.Metadata = datatypes.JSONMap{}
	}
	return event
}

// WithActor records who performed the action
func (e *AuthEvent) WithActor(actorID uuid.UUID) *AuthEvent {
	if actorID != uuid.Nil {
		id := actorID
		e.ActorID = &id
	}
	return e
}

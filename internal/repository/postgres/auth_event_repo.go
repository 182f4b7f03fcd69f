package postgres

import (
	"context"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxEventPage = 500

type authEventRepository struct {
	db *gorm.DB
}

func NewAuthEventRepository(db *gorm.DB) *authEventRepository {
	return &authEventRepository{db: db}
}

func (r *authEventRepository) Create(ctx context.Context, event *domain.AuthEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *authEventRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AuthEvent, error) {
	var events []*domain.AuthEvent
	err := r.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(clampLimit(limit)).
		Find(&events).Error
	return events, err
}

func (r *authEventRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.AuthEvent, error) {
	var events []*domain.AuthEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(clampLimit(limit)).
		Find(&events).Error
	return events, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxEventPage {
		return maxEventPage
	}
	return limit
}

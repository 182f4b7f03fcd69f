package postgres

import (
	"context"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *refreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Store(ctx context.Context, token *domain.RefreshToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "created_at", "expires_at"}),
		}).
		Create(token).Error
}

func (r *refreshTokenRepository) Validate(ctx context.Context, value string, userID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.RefreshToken{}).
		Where("token = ? AND user_id = ? AND expires_at > ?", value, userID, now).
		Count(&count).Error
	return count > 0, err
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, value string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&domain.RefreshToken{}, "token = ?", value)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *refreshTokenRepository) DeleteExpiredForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.RefreshToken{}, "user_id = ? AND expires_at <= ?", userID, now)
	return result.RowsAffected, result.Error
}

func (r *refreshTokenRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

package postgres

import (
	"context"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) *favoriteRepository {
	return &favoriteRepository{db: db}
}

// Add is idempotent: adding an existing favorite keeps the original row.
func (r *favoriteRepository) Add(ctx context.Context, favorite *domain.Favorite) error {
	if favorite.CreatedAt.IsZero() {
		favorite.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(favorite).Error
}

func (r *favoriteRepository) Remove(ctx context.Context, userID uuid.UUID, vehicleID string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Favorite{}, "user_id = ? AND vehicle_id = ?", userID, vehicleID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrFavoriteNotFound
	}
	return nil
}

func (r *favoriteRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	var favorites []*domain.Favorite
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	return favorites, err
}

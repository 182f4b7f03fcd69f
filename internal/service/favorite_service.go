package service

import (
	"context"
	"strings"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/repository"
	"github.com/google/uuid"
)

type FavoriteService struct {
	favorites repository.FavoriteRepository
}

func NewFavoriteService(favorites repository.FavoriteRepository) *FavoriteService {
	return &FavoriteService{favorites: favorites}
}

func (s *FavoriteService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	favorites, err := s.favorites.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if favorites == nil {
		favorites = []*domain.Favorite{}
	}
	return favorites, nil
}

func (s *FavoriteService) Add(ctx context.Context, userID uuid.UUID, vehicleID string) (*domain.Favorite, error) {
	if err := validateVehicleID(vehicleID); err != nil {
		return nil, err
	}
	favorite := &domain.Favorite{
		UserID:    userID,
		VehicleID: strings.TrimSpace(vehicleID),
		CreatedAt: time.Now(),
	}
	if err := s.favorites.Add(ctx, favorite); err != nil {
		return nil, err
	}
	return favorite, nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID uuid.UUID, vehicleID string) error {
	if err := validateVehicleID(vehicleID); err != nil {
		return err
	}
	return s.favorites.Remove(ctx, userID, strings.TrimSpace(vehicleID))
}

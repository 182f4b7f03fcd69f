package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *roleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Exists(ctx context.Context, name domain.RoleName) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Role{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (r *roleRepository) Create(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	role := &domain.Role{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(role).Error
	if err != nil {
		return nil, err
	}
	return r.GetByName(ctx, name)
}

func (r *roleRepository) GetByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) GetForUser(ctx context.Context, userID uuid.UUID) ([]domain.RoleName, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("user_roles AS ur").
		Joins("JOIN roles AS r ON r.id = ur.role_id").
		Where("ur.user_id = ?", userID).
		Order("ur.created_at ASC, r.name ASC").
		Pluck("r.name", &names).Error
	if err != nil {
		return nil, err
	}

	roles := make([]domain.RoleName, 0, len(names))
	for _, n := range names {
		roles = append(roles, domain.RoleName(n))
	}
	return roles, nil
}

func (r *roleRepository) GetForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]domain.RoleName, error) {
	result := make(map[uuid.UUID][]domain.RoleName, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		UserID uuid.UUID
		Name   string
	}
	err := r.db.WithContext(ctx).
		Table("user_roles AS ur").
		Select("ur.user_id AS user_id, r.name AS name").
		Joins("JOIN roles AS r ON r.id = ur.role_id").
		Where("ur.user_id IN ?", userIDs).
		Order("ur.created_at ASC, r.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.UserID] = append(result[row.UserID], domain.RoleName(row.Name))
	}
	return result, nil
}

func (r *roleRepository) Assign(ctx context.Context, userID uuid.UUID, name domain.RoleName) error {
	role, err := r.GetByName(ctx, name)
	if err != nil {
		return err
	}

	assignment := &domain.UserRoleAssignment{
		UserID:    userID,
		RoleID:    role.ID,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(assignment).Error
}

func (r *roleRepository) RemoveAll(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.UserRoleAssignment{}, "user_id = ?", userID).Error
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// registrationLockKey is the advisory lock id held while an account is created.
const registrationLockKey int64 = 0x6175746f73616c6e

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(user).Error
	return translateUserError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByConfirmationToken(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email_confirmation_token = ?", token).First(&user).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

// Update writes the profile columns of user. Password and verification state
// have their own conditional updates and are never written from a snapshot.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(user).Select("name", "email", "updated_at").Updates(user)
	if result.Error != nil {
		return translateUserError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&count).Error
	return count, err
}

func (r *userRepository) LockRegistrations(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", registrationLockKey).Error
}

func (r *userRepository) ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND email_confirmation_token = ? AND is_email_confirmed = ?", userID, token, false).
		Updates(map[string]any{
			"is_email_confirmed":                  true,
			"email_confirmation_token":            nil,
			"email_confirmation_token_created_at": nil,
			"updated_at":                          time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClearConfirmationToken drops token only while the user still holds it, so a
// token replaced in the meantime survives.
func (r *userRepository) ClearConfirmationToken(ctx context.Context, userID uuid.UUID, token string) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND email_confirmation_token = ?", userID, token).
		Updates(map[string]any{
			"email_confirmation_token":            nil,
			"email_confirmation_token_created_at": nil,
			"updated_at":                          time.Now(),
		}).Error
}

func (r *userRepository) SetConfirmationToken(ctx context.Context, userID uuid.UUID, token string, issuedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND is_email_confirmed = ?", userID, false).
		Updates(map[string]any{
			"email_confirmation_token":            token,
			"email_confirmation_token_created_at": issuedAt,
			"updated_at":                          time.Now(),
		})
	if result.Error != nil {
		return translateUserError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	}
	return err
}

func translateUserError(err error) error {
	switch {
	case err == nil:
		return nil
	case uniqueViolationOn(err, usersEmailKey):
		return domain.ErrEmailTaken
	case uniqueViolationOn(err, usersConfirmationTokenKey):
		return domain.ErrTokenCollision
	}
	return err
}

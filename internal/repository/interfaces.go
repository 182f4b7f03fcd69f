package repository

import (
	"context"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	// Create inserts user. A case-insensitive duplicate email yields domain.ErrEmailTaken.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByConfirmationToken(ctx context.Context, token string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
	Count(ctx context.Context) (int64, error)

	// LockRegistrations serializes account creation until the surrounding
	// transaction ends. It must run inside WithinTransaction.
	LockRegistrations(ctx context.Context) error

	ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	ClearConfirmationToken(ctx context.Context, userID uuid.UUID, token string) error
	SetConfirmationToken(ctx context.Context, userID uuid.UUID, token string, issuedAt time.Time) error
}

type RoleRepository interface {
	Exists(ctx context.Context, name domain.RoleName) (bool, error)
	// Create adds the role if missing and returns the stored row.
	Create(ctx context.Context, name domain.RoleName) (*domain.Role, error)
	GetByName(ctx context.Context, name domain.RoleName) (*domain.Role, error)
	// GetForUser lists role names oldest membership first.
	GetForUser(ctx context.Context, userID uuid.UUID) ([]domain.RoleName, error)
	GetForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]domain.RoleName, error)
	Assign(ctx context.Context, userID uuid.UUID, name domain.RoleName) error
	RemoveAll(ctx context.Context, userID uuid.UUID) error
}

type RefreshTokenRepository interface {
	Store(ctx context.Context, token *domain.RefreshToken) error
	// Validate reports whether value exists, belongs to userID and has not expired at now.
	Validate(ctx context.Context, value string, userID uuid.UUID, now time.Time) (bool, error)
	// Revoke deletes value and reports whether a row was removed.
	Revoke(ctx context.Context, value string) (bool, error)
	DeleteExpiredForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type FavoriteRepository interface {
	Add(ctx context.Context, favorite *domain.Favorite) error
	Remove(ctx context.Context, userID uuid.UUID, vehicleID string) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error)
}

type AuthEventRepository interface {
	Create(ctx context.Context, event *domain.AuthEvent) error
	ListRecent(ctx context.Context, limit int) ([]*domain.AuthEvent, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.AuthEvent, error)
}

// Transactor runs fn against repositories bound to a single transaction.
// Returning an error rolls the transaction back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

type Repositories struct {
	User         UserRepository
	Role         RoleRepository
	RefreshToken RefreshTokenRepository
	Favorite     FavoriteRepository
	AuthEvent    AuthEventRepository
	Tx           Transactor
}

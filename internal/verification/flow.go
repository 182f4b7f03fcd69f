package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dom/autosalon/internal/domain"
)

// Store is the slice of the credential store the flow needs.
type Store interface {
	GetByConfirmationToken(ctx context.Context, token string) (*domain.User, error)
	// ConfirmEmail marks the user confirmed and clears the token only if the
	// user is still unconfirmed and still holds token. It reports whether a
	// row changed.
	ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	// ClearConfirmationToken drops token if the user still holds it.
	ClearConfirmationToken(ctx context.Context, userID uuid.UUID, token string) error
}

type Flow struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewFlow(store Store, ttl time.Duration) *Flow {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Flow{store: store, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the flow using now as its time source
func (f *Flow) WithClock(now func() time.Time) *Flow {
	clone := *f
	clone.now = now
	return &clone
}

// TTL returns how long an issued token stays valid
func (f *Flow) TTL() time.Duration {
	return f.ttl
}

// Issue generates a token and attaches it to user as the pending confirmation.
// The caller persists the user.
func (f *Flow) Issue(user *domain.User) (Token, error) {
	token, err := Generate(f.now())
	if err != nil {
		return Token{}, err
	}
	raw := token.Raw
	issuedAt := token.IssuedAt
	user.IsEmailConfirmed = false
	user.EmailConfirmationToken = &raw
	user.EmailConfirmationTokenCreatedAt = &issuedAt
	return token, nil
}

// Consume redeems value, which may still be percent-encoded. Only one of any
// number of concurrent calls with the same token succeeds.
func (f *Flow) Consume(ctx context.Context, value string) (*domain.User, error) {
	token := Decode(value)
	if token == "" {
		return nil, domain.ErrVerificationTokenNotFound
	}

	user, err := f.store.GetByConfirmationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrVerificationTokenNotFound
		}
		return nil, fmt.Errorf("find user by verification token: %w", err)
	}

	if IsExpired(user.EmailConfirmationTokenCreatedAt, f.ttl, f.now()) {
		if err := f.store.ClearConfirmationToken(ctx, user.ID, token); err != nil {
			return nil, fmt.Errorf("clear expired verification token: %w", err)
		}
		return nil, domain.ErrVerificationTokenExpired
	}

	if user.IsEmailConfirmed {
		return nil, domain.ErrEmailAlreadyConfirmed
	}

	confirmed, err := f.store.ConfirmEmail(ctx, user.ID, token)
	if err != nil {
		return nil, fmt.Errorf("confirm email: %w", err)
	}
	if !confirmed {
		return nil, domain.ErrVerificationTokenNotFound
	}

	user.MarkEmailConfirmed()
	return user, nil
}

package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/autosalon/internal/domain"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	err   error
}

func newMemoryStore(users ...*domain.User) *memoryStore {
	s := &memoryStore{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) GetByConfirmationToken(_ context.Context, token string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.EmailConfirmationToken != nil && *u.EmailConfirmationToken == token {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memoryStore) ConfirmEmail(_ context.Context, userID uuid.UUID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.IsEmailConfirmed || u.EmailConfirmationToken == nil || *u.EmailConfirmationToken != token {
		return false, nil
	}
	u.MarkEmailConfirmed()
	return true, nil
}

func (s *memoryStore) ClearConfirmationToken(_ context.Context, userID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok && u.EmailConfirmationToken != nil && *u.EmailConfirmationToken == token {
		u.EmailConfirmationToken = nil
		u.EmailConfirmationTokenCreatedAt = nil
	}
	return nil
}

func pendingUser(t *testing.T, flow *Flow) (*domain.User, Token) {
	t.Helper()
	user := &domain.User{ID: uuid.New(), Name: "Jane", Email: "jane@example.com"}
	token, err := flow.Issue(user)
	require.NoError(t, err)
	return user, token
}

func TestFlow_Issue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	flow := NewFlow(newMemoryStore(), 0).WithClock(func() time.Time { return now })
	assert.Equal(t, DefaultTTL, flow.TTL())

	user, token := pendingUser(t, flow)

	assert.False(t, user.IsEmailConfirmed)
	require.NotNil(t, user.EmailConfirmationToken)
	assert.Equal(t, token.Raw, *user.EmailConfirmationToken)
	require.NotNil(t, user.EmailConfirmationTokenCreatedAt)
	assert.Equal(t, now, *user.EmailConfirmationTokenCreatedAt)
	assert.True(t, user.HasPendingVerification())
}

func TestFlow_Consume(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	flow := NewFlow(store, DefaultTTL)

	user, token := pendingUser(t, flow)
	store.users[user.ID] = user

	got, err := flow.Consume(ctx, token.Encoded)
	require.NoError(t, err)
	assert.True(t, got.IsEmailConfirmed)
	assert.Nil(t, got.EmailConfirmationToken)
	assert.Nil(t, got.EmailConfirmationTokenCreatedAt)

	stored := store.users[user.ID]
	assert.True(t, stored.IsEmailConfirmed)
	assert.Nil(t, stored.EmailConfirmationToken)

	_, err = flow.Consume(ctx, token.Encoded)
	assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)
}

func TestFlow_Consume_Expired(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	flow := NewFlow(store, DefaultTTL).WithClock(func() time.Time { return issuedAt })

	user, token := pendingUser(t, flow)
	store.users[user.ID] = user

	later := flow.WithClock(func() time.Time { return issuedAt.Add(25 * time.Hour) })

	_, err := later.Consume(ctx, token.Raw)
	assert.ErrorIs(t, err, domain.ErrVerificationTokenExpired)
	assert.Nil(t, store.users[user.ID].EmailConfirmationToken)
	assert.Nil(t, store.users[user.ID].EmailConfirmationTokenCreatedAt)
	assert.False(t, store.users[user.ID].IsEmailConfirmed)

	_, err = later.Consume(ctx, token.Raw)
	assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)
}

func TestFlow_Consume_AlreadyConfirmed(t *testing.T) {
	raw := "stale-token"
	now := time.Now()
	user := &domain.User{
		ID:                              uuid.New(),
		IsEmailConfirmed:                true,
		EmailConfirmationToken:          &raw,
		EmailConfirmationTokenCreatedAt: &now,
	}
	flow := NewFlow(newMemoryStore(user), DefaultTTL)

	_, err := flow.Consume(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyConfirmed)
}

func TestFlow_Consume_UnknownOrEmpty(t *testing.T) {
	flow := NewFlow(newMemoryStore(), DefaultTTL)

	_, err := flow.Consume(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)

	_, err = flow.Consume(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)
}

func TestFlow_Consume_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	flow := NewFlow(store, DefaultTTL)

	_, err := flow.Consume(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrVerificationTokenNotFound)
	assert.ErrorIs(t, err, store.err)
}

func TestFlow_Consume_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	flow := NewFlow(store, DefaultTTL)

	user, token := pendingUser(t, flow)
	store.users[user.ID] = user

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := flow.Consume(ctx, token.Raw)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrVerificationTokenNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, notFound)
}

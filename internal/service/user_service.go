package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// UserSummary is the admin view of an account.
type UserSummary struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Role             domain.RoleName `json:"role"`
	IsEmailConfirmed bool            `json:"isEmailConfirmed"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// summarize builds the view for user. Accounts without a membership are
// reported as User.
func summarize(user *domain.User, roles []domain.RoleName) *UserSummary {
	role, ok := domain.EffectiveRole(roles)
	if !ok {
		role = domain.RoleUser
	}
	return &UserSummary{
		ID:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		Role:             role,
		IsEmailConfirmed: user.IsEmailConfirmed,
		CreatedAt:        user.CreatedAt,
	}
}

type UserService struct {
	repos  *repository.Repositories
	events *recorder
}

func NewUserService(repos *repository.Repositories, activity ActivitySink, logger logging.Logger) *UserService {
	return &UserService{repos: repos, events: newRecorder(activity, logger)}
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*UserSummary, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repos.User.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	roles, err := s.repos.Role.GetForUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	summaries := make([]*UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, summarize(u, roles[u.ID]))
	}
	return summaries, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*UserSummary, error) {
	user, err := s.repos.User.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.repos.Role.GetForUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return summarize(user, roles), nil
}

// Update changes name and email and, when input.Role is set, replaces the
// user's role. Everything happens in one transaction.
func (s *UserService) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateUserInput) (*UserSummary, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var (
		summary     *UserSummary
		roleChanged bool
	)
	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		user, err := tx.User.GetByID(ctx, id)
		if err != nil {
			return err
		}

		user.Name = input.Name
		user.Email = input.Email
		if err := tx.User.Update(ctx, user); err != nil {
			return err
		}
		if user, err = tx.User.GetByID(ctx, id); err != nil {
			return err
		}

		roles, err := tx.Role.GetForUser(ctx, id)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		if input.Role != nil && !hasOnly(roles, *input.Role) {
			if err := replaceRole(ctx, tx.Role, id, *input.Role); err != nil {
				return err
			}
			roles = []domain.RoleName{*input.Role}
			roleChanged = true
		}

		summary = summarize(user, roles)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityUserUpdated, id, nil).WithActor(actorID))
	if roleChanged {
		s.events.record(ctx, domain.NewAuthEvent(domain.ActivityRoleChanged, id, map[string]any{
			"role": summary.Role.String(),
		}).WithActor(actorID))
	}
	return summary, nil
}

// ChangeRole replaces the role of user id with role.
func (s *UserService) ChangeRole(ctx context.Context, actorID, id uuid.UUID, role domain.RoleName) (*UserSummary, error) {
	if !role.IsValid() {
		return nil, domain.ErrInvalidRole
	}

	var summary *UserSummary
	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		user, err := tx.User.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := replaceRole(ctx, tx.Role, id, role); err != nil {
			return err
		}
		summary = summarize(user, []domain.RoleName{role})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityRoleChanged, id, map[string]any{
		"role": role.String(),
	}).WithActor(actorID))
	return summary, nil
}

// Delete removes the account. Refresh tokens, favorites and role memberships
// go with it.
func (s *UserService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if err := s.repos.User.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityUserDeleted, id, nil).WithActor(actorID))
	return nil
}

func (s *UserService) RecentActivity(ctx context.Context, limit int) ([]*domain.AuthEvent, error) {
	return s.repos.AuthEvent.ListRecent(ctx, limit)
}

func (s *UserService) UserActivity(ctx context.Context, id uuid.UUID, limit int) ([]*domain.AuthEvent, error) {
	if _, err := s.repos.User.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repos.AuthEvent.ListForUser(ctx, id, limit)
}

func replaceRole(ctx context.Context, roles repository.RoleRepository, userID uuid.UUID, role domain.RoleName) error {
	if err := roles.RemoveAll(ctx, userID); err != nil {
		return fmt.Errorf("remove roles: %w", err)
	}
	return assignRole(ctx, roles, userID, role)
}

func hasOnly(roles []domain.RoleName, role domain.RoleName) bool {
	return len(roles) == 1 && roles[0] == role
}

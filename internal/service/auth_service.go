package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/autosalon/internal/auth"
	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/email"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/repository"
	"github.com/dom/autosalon/internal/verification"
	"github.com/google/uuid"
)

type AuthService struct {
	repos        *repository.Repositories
	tokens       *auth.TokenIssuer
	hasher       auth.PasswordHasher
	verification *verification.Flow
	mailer       email.Sender
	events       *recorder
	logger       logging.Logger
	now          func() time.Time
}

func NewAuthService(
	repos *repository.Repositories,
	tokens *auth.TokenIssuer,
	hasher auth.PasswordHasher,
	flow *verification.Flow,
	mailer email.Sender,
	activity ActivitySink,
	logger logging.Logger,
) *AuthService {
	return &AuthService{
		repos:        repos,
		tokens:       tokens,
		hasher:       hasher,
		verification: flow,
		mailer:       mailer,
		events:       newRecorder(activity, logger),
		logger:       logger,
		now:          time.Now,
	}
}

type RegisterResult struct {
	User *domain.User
	Role domain.RoleName
}

// Session is the outcome of a login or refresh. The refresh token travels in
// a cookie, never in the response body.
type Session struct {
	User                 *domain.User
	Role                 domain.RoleName
	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         *domain.RefreshToken
}

// Register creates an unconfirmed account and emails a verification link.
// The first account ever created becomes Admin. When the account is stored
// but the email cannot be sent, the result is returned together with an
// error wrapping domain.ErrVerificationEmailFailed.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repos.User.GetByEmail(ctx, input.Email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	token, err := s.verification.Issue(user)
	if err != nil {
		return nil, err
	}

	var role domain.RoleName
	err = s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.LockRegistrations(ctx); err != nil {
			return fmt.Errorf("lock registrations: %w", err)
		}
		count, err := tx.User.Count(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if err := tx.User.Create(ctx, user); err != nil {
			return err
		}

		role = domain.RoleUser
		if count == 0 {
			role = domain.RoleAdmin
		}
		return assignRole(ctx, tx.Role, user.ID, role)
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", role)
	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityUserRegistered, user.ID, map[string]any{
		"role": role.String(),
	}))

	result := &RegisterResult{User: user, Role: role}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token.Encoded); err != nil {
		s.logger.Error(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
		return result, fmt.Errorf("%w: %v", domain.ErrVerificationEmailFailed, err)
	}
	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityVerificationSent, user.ID, nil))

	return result, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repos.User.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.loginFailed(ctx, uuid.Nil, "user_not_found")
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if !user.IsEmailConfirmed {
		s.loginFailed(ctx, user.ID, "email_not_verified")
		return nil, domain.ErrEmailNotVerified
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.loginFailed(ctx, user.ID, "invalid_password")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	roles, err := s.repos.Role.GetForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	role, ok := domain.EffectiveRole(roles)
	if !ok {
		s.loginFailed(ctx, user.ID, "no_role")
		return nil, domain.ErrNoRoleAssigned
	}

	if purged, err := s.repos.RefreshToken.DeleteExpiredForUser(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn(ctx, "failed to purge expired refresh tokens", "user_id", user.ID, "error", err)
	} else if purged > 0 {
		s.logger.Debug(ctx, "purged expired refresh tokens", "user_id", user.ID, "count", purged)
	}

	session, err := s.issueSession(ctx, s.repos.RefreshToken, user, role)
	if err != nil {
		return nil, err
	}

	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityLoginSuccess, user.ID, map[string]any{
		"role": role.String(),
	}))
	return session, nil
}

// Refresh rotates a refresh token. accessToken may be expired but must carry
// a valid signature, issuer and audience. Every rejection is
// domain.ErrUnauthorized; only one of several concurrent calls presenting the
// same refresh token succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, accessToken string) (*Session, error) {
	if refreshToken == "" || accessToken == "" {
		return nil, domain.ErrUnauthorized
	}

	claims, err := s.tokens.ValidateExpiredToken(accessToken)
	if err != nil {
		s.logger.Debug(ctx, "refresh rejected, invalid access token", "error", err)
		return nil, domain.ErrUnauthorized
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	var session *Session
	err = s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		valid, err := tx.RefreshToken.Validate(ctx, refreshToken, userID, s.now())
		if err != nil {
			return fmt.Errorf("validate refresh token: %w", err)
		}
		if !valid {
			return domain.ErrUnauthorized
		}

		revoked, err := tx.RefreshToken.Revoke(ctx, refreshToken)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if !revoked {
			return domain.ErrUnauthorized
		}

		user, err := tx.User.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrUnauthorized
			}
			return fmt.Errorf("load user: %w", err)
		}

		roles, err := tx.Role.GetForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		role, ok := domain.EffectiveRole(roles)
		if !ok {
			role = domain.RoleUser
		}

		session, err = s.issueSession(ctx, tx.RefreshToken, user, role)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.logger.Debug(ctx, "refresh rejected", "user_id", userID)
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityTokenRefreshed, userID, nil))
	return session, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.NewValidationError("token", "Verification token is missing")
	}

	user, err := s.verification.Consume(ctx, token)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)
	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityEmailVerified, user.ID, nil))
	return user, nil
}

// ResendVerification replaces the pending token of an unconfirmed account
// and emails it again. Unknown and already confirmed addresses are ignored so
// callers cannot probe which emails are registered.
func (s *AuthService) ResendVerification(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if err := validateEmail(address); err != nil {
		return err
	}

	user, err := s.repos.User.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}
	if user.IsEmailConfirmed {
		return nil
	}

	token, err := s.verification.Issue(user)
	if err != nil {
		return err
	}
	err = s.repos.User.SetConfirmationToken(ctx, user.ID, token.Raw, token.IssuedAt)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("store verification token: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token.Encoded); err != nil {
		s.logger.Error(ctx, "failed to resend verification email", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrVerificationEmailFailed, err)
	}

	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityVerificationSent, user.ID, map[string]any{
		"resend": true,
	}))
	return nil
}

// Logout revokes refreshToken. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID uuid.UUID) error {
	if refreshToken == "" {
		return nil
	}
	revoked, err := s.repos.RefreshToken.Revoke(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if revoked {
		s.events.record(ctx, domain.NewAuthEvent(domain.ActivityLogout, userID, nil))
	}
	return nil
}

// CurrentUser returns the profile of an authenticated caller.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.repos.Role.GetForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return summarize(user, roles), nil
}

// ValidateAccessToken strictly validates a bearer token for protected routes.
func (s *AuthService) ValidateAccessToken(token string) (*auth.Claims, error) {
	return s.tokens.ValidateAccessToken(token)
}

func (s *AuthService) issueSession(ctx context.Context, store repository.RefreshTokenRepository, user *domain.User, role domain.RoleName) (*Session, error) {
	accessToken, expiresAt, err := s.tokens.IssueAccessToken(auth.SubjectFor(user, role))
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := store.Store(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		User:                 user,
		Role:                 role,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: expiresAt,
		RefreshToken:         refreshToken,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID uuid.UUID, reason string) {
	s.logger.Info(ctx, "login failed", "user_id", userID, "reason", reason)
	s.events.record(ctx, domain.NewAuthEvent(domain.ActivityLoginFailure, userID, map[string]any{
		"reason": reason,
	}))
}

// assignRole creates the role row on first use and adds the membership.
func assignRole(ctx context.Context, roles repository.RoleRepository, userID uuid.UUID, role domain.RoleName) error {
	exists, err := roles.Exists(ctx, role)
	if err != nil {
		return fmt.Errorf("check role %s: %w", role, err)
	}
	if !exists {
		if _, err := roles.Create(ctx, role); err != nil {
			return fmt.Errorf("create role %s: %w", role, err)
		}
	}
	if err := roles.Assign(ctx, userID, role); err != nil {
		return fmt.Errorf("assign role %s: %w", role, err)
	}
	return nil
}

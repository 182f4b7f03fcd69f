package service_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dom/autosalon/internal/auth"
	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/service"
	"github.com/dom/autosalon/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerInput(name, email string) service.RegisterInput {
	return service.RegisterInput{
		Name:            name,
		Email:           email,
		Password:        testutil.DefaultPassword,
		ConfirmPassword: testutil.DefaultPassword,
	}
}

func TestAuthService_Register(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, mailer := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	t.Run("first user becomes Admin, second User", func(t *testing.T) {
		testDB.Truncate(t)

		first, err := services.Auth.Register(ctx, registerInput("Ada", "ada@example.com"))
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, first.Role)

		second, err := services.Auth.Register(ctx, registerInput("Bob", "bob@example.com"))
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, second.Role)

		roles, err := repos.Role.GetForUser(ctx, first.User.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.RoleName{domain.RoleAdmin}, roles)
	})

	t.Run("creates exactly one unconfirmed user with a token", func(t *testing.T) {
		testDB.Truncate(t)
		mailer.Reset()

		result, err := services.Auth.Register(ctx, registerInput("  Cleo  ", " cleo@example.com "))
		require.NoError(t, err)

		count, err := repos.User.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		stored, err := repos.User.GetByEmail(ctx, "cleo@example.com")
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, stored.ID)
		assert.Equal(t, "Cleo", stored.Name)
		assert.False(t, stored.IsEmailConfirmed)
		require.NotNil(t, stored.EmailConfirmationToken)
		assert.NotEmpty(t, *stored.EmailConfirmationToken)
		assert.NotNil(t, stored.EmailConfirmationTokenCreatedAt)
		assert.NotEqual(t, testutil.DefaultPassword, stored.PasswordHash)

		sent, ok := mailer.Last("cleo@example.com")
		require.True(t, ok, "verification email sent")
		assert.Equal(t, *stored.EmailConfirmationToken, sent.Token())

		tokens, err := repos.RefreshToken.CountForUser(ctx, stored.ID)
		require.NoError(t, err)
		assert.Zero(t, tokens, "no session at registration")
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := services.Auth.Register(ctx, registerInput("Dan", "dan@example.com"))
		require.NoError(t, err)

		_, err = services.Auth.Register(ctx, registerInput("Dan Two", "DAN@example.com"))
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name      string
			input     service.RegisterInput
			wantField string
			wantMsg   string
		}{
			{"missing name", registerInput("", "x@example.com"), "name", "Name is required"},
			{"missing email", registerInput("X", ""), "email", "Email is required"},
			{"bad email", registerInput("X", "not-an-email"), "email", "Email is not a valid email address"},
			{
				name:      "mismatched passwords",
				input:     service.RegisterInput{Name: "X", Email: "x@example.com", Password: "a", ConfirmPassword: "b"},
				wantField: "confirmPassword",
				wantMsg:   "Passwords do not match",
			},
			{
				name:      "blank password",
				input:     service.RegisterInput{Name: "X", Email: "x@example.com", Password: "   ", ConfirmPassword: "   "},
				wantField: "password",
				wantMsg:   "Password is required",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := services.Auth.Register(ctx, tt.input)
				var ve *domain.ValidationError
				require.True(t, errors.As(err, &ve), "got %v", err)
				assert.Equal(t, tt.wantField, ve.Field)
				assert.Equal(t, tt.wantMsg, ve.Message)
			})
		}
	})

	t.Run("email failure keeps the account", func(t *testing.T) {
		testDB.Truncate(t)
		mailer.Reset()
		mailer.Fail()
		defer mailer.Reset()

		result, err := services.Auth.Register(ctx, registerInput("Eve", "eve@example.com"))
		assert.ErrorIs(t, err, domain.ErrVerificationEmailFailed)
		require.NotNil(t, result)

		stored, err := repos.User.GetByEmail(ctx, "eve@example.com")
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, stored.ID)
		assert.False(t, stored.IsEmailConfirmed)
	})
}

func TestAuthService_Register_Concurrent(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, _ := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	t.Run("same email", func(t *testing.T) {
		testDB.Truncate(t)

		const workers = 5
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = services.Auth.Register(ctx, registerInput("Racer", "race@example.com"))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrEmailTaken)
		}
		assert.Equal(t, 1, succeeded)

		count, err := repos.User.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("only one first Admin", func(t *testing.T) {
		testDB.Truncate(t)

		const workers = 5
		roles := make([]domain.RoleName, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := services.Auth.Register(ctx, registerInput("User", uuid.New().String()+"@example.com"))
				if assert.NoError(t, err) {
					roles[i] = result.Role
				}
			}(i)
		}
		wg.Wait()

		admins := 0
		for _, r := range roles {
			if r == domain.RoleAdmin {
				admins++
			}
		}
		assert.Equal(t, 1, admins)
	})
}

func TestAuthService_Login(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, _ := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	confirmed, password := testutil.NewUserBuilder().WithRole(domain.RoleAdmin).Build(t, testDB.DB)
	unverified, _ := testutil.NewUserBuilder().Unverified().Build(t, testDB.DB)
	roleless, _ := testutil.NewUserBuilder().WithoutRole().Build(t, testDB.DB)

	tests := []struct {
		name    string
		input   service.LoginInput
		wantErr error
	}{
		{"success", service.LoginInput{Email: confirmed.Email, Password: password}, nil},
		{"email is trimmed", service.LoginInput{Email: " " + confirmed.Email + " ", Password: password}, nil},
		{"unknown email", service.LoginInput{Email: "ghost@example.com", Password: password}, domain.ErrUserNotFound},
		{"unverified email", service.LoginInput{Email: unverified.Email, Password: testutil.DefaultPassword}, domain.ErrEmailNotVerified},
		{"wrong password", service.LoginInput{Email: confirmed.Email, Password: "wrong"}, domain.ErrInvalidCredentials},
		{"no role", service.LoginInput{Email: roleless.Email, Password: testutil.DefaultPassword}, domain.ErrNoRoleAssigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := services.Auth.Login(ctx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, session, "no token on failure")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.RoleAdmin, session.Role)
			assert.NotEmpty(t, session.AccessToken)
			require.NotNil(t, session.RefreshToken)

			claims, err := services.Tokens.ValidateAccessToken(session.AccessToken)
			require.NoError(t, err)
			id, err := claims.UserID()
			require.NoError(t, err)
			assert.Equal(t, confirmed.ID, id)
			assert.Equal(t, domain.RoleAdmin, claims.Role)
			assert.Equal(t, confirmed.Email, claims.Email)

			ok, err := repos.RefreshToken.Validate(ctx, session.RefreshToken.Token, confirmed.ID, time.Now())
			require.NoError(t, err)
			assert.True(t, ok, "refresh token persisted")
		})
	}

	t.Run("wrong password stores no refresh token", func(t *testing.T) {
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		_, err := services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: "nope"})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)

		count, err := repos.RefreshToken.CountForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("purges expired refresh tokens", func(t *testing.T) {
		user, pw := testutil.NewUserBuilder().Build(t, testDB.DB)
		require.NoError(t, repos.RefreshToken.Store(ctx, &domain.RefreshToken{
			Token:     "old-" + uuid.New().String(),
			UserID:    user.ID,
			CreatedAt: time.Now().Add(-48 * time.Hour),
			ExpiresAt: time.Now().Add(-24 * time.Hour),
		}))

		_, err := services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: pw})
		require.NoError(t, err)

		count, err := repos.RefreshToken.CountForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func expiredTokenIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	cfg := testutil.TestConfig()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, auth.WithClock(func() time.Time { return time.Now().Add(-2 * cfg.AccessTokenTTL) }))
	require.NoError(t, err)
	return issuer
}

func TestAuthService_Refresh(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, _ := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	login := func(t *testing.T) (*domain.User, *service.Session) {
		t.Helper()
		user, pw := testutil.NewUserBuilder().Build(t, testDB.DB)
		session, err := services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: pw})
		require.NoError(t, err)
		return user, session
	}

	t.Run("rotation", func(t *testing.T) {
		user, session := login(t)

		next, err := services.Auth.Refresh(ctx, session.RefreshToken.Token, session.AccessToken)
		require.NoError(t, err)
		assert.NotEqual(t, session.RefreshToken.Token, next.RefreshToken.Token)
		assert.Equal(t, domain.RoleUser, next.Role)

		_, err = services.Auth.Refresh(ctx, session.RefreshToken.Token, session.AccessToken)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, "old refresh token is single use")

		third, err := services.Auth.Refresh(ctx, next.RefreshToken.Token, next.AccessToken)
		require.NoError(t, err)

		count, err := repos.RefreshToken.CountForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
		assert.NotEmpty(t, third.AccessToken)
	})

	t.Run("expired access token is accepted", func(t *testing.T) {
		user, session := login(t)

		stale, _, err := expiredTokenIssuer(t).IssueAccessToken(auth.SubjectFor(user, domain.RoleUser))
		require.NoError(t, err)

		_, err = services.Tokens.ValidateAccessToken(stale)
		require.Error(t, err, "strict validation rejects the stale token")

		next, err := services.Auth.Refresh(ctx, session.RefreshToken.Token, stale)
		require.NoError(t, err)
		assert.NotEmpty(t, next.AccessToken)
	})

	t.Run("role is re-derived from the store", func(t *testing.T) {
		user, session := login(t)
		_, err := services.User.ChangeRole(ctx, uuid.Nil, user.ID, domain.RoleAdmin)
		require.NoError(t, err)

		next, err := services.Auth.Refresh(ctx, session.RefreshToken.Token, session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, next.Role)
	})

	t.Run("rejections", func(t *testing.T) {
		_, session := login(t)
		_, otherSession := login(t)

		tests := []struct {
			name         string
			refreshToken string
			accessToken  string
		}{
			{"missing refresh token", "", session.AccessToken},
			{"missing access token", session.RefreshToken.Token, ""},
			{"garbage access token", session.RefreshToken.Token, "garbage"},
			{"refresh token of another user", otherSession.RefreshToken.Token, session.AccessToken},
			{"unknown refresh token", "unknown", session.AccessToken},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				next, err := services.Auth.Refresh(ctx, tt.refreshToken, tt.accessToken)
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				assert.Nil(t, next)
			})
		}
	})

	t.Run("concurrent refresh succeeds once", func(t *testing.T) {
		_, session := login(t)

		const workers = 6
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = services.Auth.Refresh(ctx, session.RefreshToken.Token, session.AccessToken)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestAuthService_VerifyEmail(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, mailer := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	register := func(t *testing.T, email string) (*domain.User, string) {
		t.Helper()
		result, err := services.Auth.Register(ctx, registerInput("Verifier", email))
		require.NoError(t, err)
		sent, ok := mailer.Last(email)
		require.True(t, ok)
		return result.User, sent.EncodedToken
	}

	t.Run("verify twice", func(t *testing.T) {
		user, token := register(t, "twice@example.com")

		verified, err := services.Auth.VerifyEmail(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, verified.ID)
		assert.True(t, verified.IsEmailConfirmed)

		_, err = services.Auth.VerifyEmail(ctx, token)
		assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)

		_, err = services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: testutil.DefaultPassword})
		assert.NoError(t, err, "verified user can log in")
	})

	t.Run("double-encoded token", func(t *testing.T) {
		_, token := register(t, "encoded@example.com")

		_, err := services.Auth.VerifyEmail(ctx, url.QueryEscape(token))
		assert.NoError(t, err)
	})

	t.Run("aged token expires then is gone", func(t *testing.T) {
		user, token := register(t, "aged@example.com")
		testutil.AgeVerificationToken(t, testDB.DB, user.ID, 25*time.Hour)

		_, err := services.Auth.VerifyEmail(ctx, token)
		assert.ErrorIs(t, err, domain.ErrVerificationTokenExpired)

		stored, err := repos.User.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.EmailConfirmationToken, "expired token is cleared")
		assert.False(t, stored.IsEmailConfirmed)

		_, err = services.Auth.VerifyEmail(ctx, token)
		assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := services.Auth.VerifyEmail(ctx, "  ")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Verification token is missing", ve.Message)
	})

	t.Run("concurrent verification succeeds once", func(t *testing.T) {
		_, token := register(t, "race-verify@example.com")

		const workers = 6
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = services.Auth.VerifyEmail(ctx, token)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestAuthService_ResendVerification(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, mailer := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	result, err := services.Auth.Register(ctx, registerInput("Resender", "resend@example.com"))
	require.NoError(t, err)
	original, ok := mailer.Last("resend@example.com")
	require.True(t, ok)

	testutil.AgeVerificationToken(t, testDB.DB, result.User.ID, 25*time.Hour)
	require.NoError(t, services.Auth.ResendVerification(ctx, "RESEND@example.com"))

	fresh, ok := mailer.Last("resend@example.com")
	require.True(t, ok)
	assert.NotEqual(t, original.EncodedToken, fresh.EncodedToken)

	_, err = services.Auth.VerifyEmail(ctx, original.EncodedToken)
	assert.ErrorIs(t, err, domain.ErrVerificationTokenNotFound, "old token replaced")

	_, err = services.Auth.VerifyEmail(ctx, fresh.EncodedToken)
	require.NoError(t, err)

	sentBefore := len(mailer.Sent())
	require.NoError(t, services.Auth.ResendVerification(ctx, "resend@example.com"), "confirmed accounts are ignored")
	require.NoError(t, services.Auth.ResendVerification(ctx, "nobody@example.com"), "unknown accounts are ignored")
	assert.Len(t, mailer.Sent(), sentBefore)

	err = services.Auth.ResendVerification(ctx, "not-an-email")
	assert.True(t, domain.IsValidationError(err))

	stored, err := repos.User.GetByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailConfirmed)
}

func TestAuthService_LogoutAndCurrentUser(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	services, repos, _ := testutil.NewTestServices(t, testDB.DB, nil)
	ctx := context.Background()

	user, pw := testutil.NewUserBuilder().WithName("Current").Build(t, testDB.DB)
	session, err := services.Auth.Login(ctx, service.LoginInput{Email: user.Email, Password: pw})
	require.NoError(t, err)

	me, err := services.Auth.CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Current", me.Name)
	assert.Equal(t, domain.RoleUser, me.Role)

	require.NoError(t, services.Auth.Logout(ctx, session.RefreshToken.Token, user.ID))
	require.NoError(t, services.Auth.Logout(ctx, session.RefreshToken.Token, user.ID), "logout is idempotent")
	require.NoError(t, services.Auth.Logout(ctx, "", user.ID))

	count, err := repos.RefreshToken.CountForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = services.Auth.Refresh(ctx, session.RefreshToken.Token, session.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = services.Auth.CurrentUser(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_RecordsActivity(t *testing.T) {
	testDB := testutil.NewTestDB(t)

	var (
		mu     sync.Mutex
		events []domain.ActivityType
	)
	sink := service.ActivitySinkFunc(func(_ context.Context, e *domain.AuthEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
		return nil
	})
	failing := service.ActivitySinkFunc(func(context.Context, *domain.AuthEvent) error {
		return errors.New("sink down")
	})

	services, _, mailer := testutil.NewTestServices(t, testDB.DB, service.MultiSink{sink, failing})
	ctx := context.Background()

	_, err := services.Auth.Register(ctx, registerInput("Audit", "audit@example.com"))
	require.NoError(t, err, "a failing sink never fails the operation")
	sent, _ := mailer.Last("audit@example.com")
	_, err = services.Auth.VerifyEmail(ctx, sent.EncodedToken)
	require.NoError(t, err)
	_, err = services.Auth.Login(ctx, service.LoginInput{Email: "audit@example.com", Password: "wrong"})
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.ActivityType{
		domain.ActivityUserRegistered,
		domain.ActivityVerificationSent,
		domain.ActivityEmailVerified,
		domain.ActivityLoginFailure,
	}, events)
}

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultPassword = "Passw0rd!"

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	name       string
	email      string
	password   string
	role       domain.RoleName
	unverified bool
	noRole     bool
}

// NewUserBuilder creates a confirmed User with a unique email
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		name:     "Test User " + suffix,
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		password: DefaultPassword,
		role:     domain.RoleUser,
	}
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) WithRole(role domain.RoleName) *UserBuilder {
	b.role = role
	return b
}

// Unverified leaves the email unconfirmed with a pending token
func (b *UserBuilder) Unverified() *UserBuilder {
	b.unverified = true
	return b
}

// WithoutRole skips the role membership
func (b *UserBuilder) WithoutRole() *UserBuilder {
	b.noRole = true
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:               uuid.New(),
		Name:             b.name,
		Email:            b.email,
		PasswordHash:     string(hashedPassword),
		IsEmailConfirmed: !b.unverified,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if b.unverified {
		token := "pending-" + uuid.New().String()
		user.EmailConfirmationToken = &token
		user.EmailConfirmationTokenCreatedAt = &now
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if !b.noRole {
		AssignRole(t, db, user.ID, b.role)
	}

	return user, b.password
}

// AssignRole adds a role membership, creating the role row when missing.
func AssignRole(t *testing.T, db *gorm.DB, userID uuid.UUID, name domain.RoleName) {
	t.Helper()

	role := &domain.Role{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(role).Error; err != nil {
		t.Fatalf("failed to create role: %v", err)
	}
	var stored domain.Role
	if err := db.Where("name = ?", name).First(&stored).Error; err != nil {
		t.Fatalf("failed to load role: %v", err)
	}

	assignment := &domain.UserRoleAssignment{UserID: userID, RoleID: stored.ID, CreatedAt: time.Now()}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("failed to assign role: %v", err)
	}
}

// AgeVerificationToken moves the pending token's issue time into the past.
func AgeVerificationToken(t *testing.T, db *gorm.DB, userID uuid.UUID, age time.Duration) {
	t.Helper()

	err := db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("email_confirmation_token_created_at", time.Now().Add(-age)).Error
	if err != nil {
		t.Fatalf("failed to age verification token: %v", err)
	}
}

// LoginResponse matches the API login and refresh responses
type LoginResponse struct {
	Flag      bool      `json:"flag"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
}

// MessageResponse matches the generic API envelope
type MessageResponse struct {
	Flag           bool   `json:"flag"`
	Message        string `json:"message"`
	Field          string `json:"field"`
	AccountCreated bool   `json:"accountCreated"`
}

// Session is an authenticated API caller.
type Session struct {
	User          *domain.User
	AccessToken   string
	RefreshCookie *http.Cookie
}

// BuildAndLogin creates the user in the database and logs in through the API.
func (b *UserBuilder) BuildAndLogin(t *testing.T, ts *TestServer) *Session {
	t.Helper()

	user, password := b.Build(t, ts.DB.DB)
	return Login(t, ts, user, password)
}

// Login authenticates through the API and returns the access token and
// refresh cookie.
func Login(t *testing.T, ts *TestServer, user *domain.User, password string) *Session {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": user.Email, "password": password})
	resp, err := http.Post(ts.APIURL("/account/login"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status code: %d", resp.StatusCode)
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	return &Session{
		User:          user,
		AccessToken:   loginResp.Token,
		RefreshCookie: FindCookie(resp, "refreshToken"),
	}
}

// FindCookie returns the named Set-Cookie of resp, or nil.
func FindCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Do sends an optionally authenticated JSON request.
func Do(t *testing.T, method, url, token string, body interface{}, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const refreshCookieName = "refreshToken"

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type Message struct {
	Flag           bool   `json:"flag"`
	Message        string `json:"message"`
	Field          string `json:"field,omitempty"`
	AccountCreated bool   `json:"accountCreated,omitempty"`
}

type Session struct {
	Flag         bool      `json:"flag"`
	Message      string    `json:"message"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Role         string    `json:"role"`
	RefreshToken string    `json:"-"`
}

type User struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	IsEmailConfirmed bool   `json:"isEmailConfirmed"`
}

// Register creates a new account. The server sends the verification email.
func (c *APIClient) Register(name, email, password string) (*Message, error) {
	body := map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	}

	resp, err := c.do(http.MethodPost, "/account/register", body, "", "")
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	defer resp.Body.Close()

	var msg Message
	if err := decode(resp, &msg, http.StatusOK); err != nil {
		if msg.AccountCreated {
			return &msg, nil
		}
		return nil, fmt.Errorf("register failed: %w", err)
	}
	return &msg, nil
}

// VerifyEmail confirms an account with the token from the emailed link
func (c *APIClient) VerifyEmail(token string) (*Message, error) {
	resp, err := c.do(http.MethodGet, "/account/verify-email?token="+url.QueryEscape(token), nil, "", "")
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	var msg Message
	if err := decode(resp, &msg, http.StatusOK); err != nil {
		return nil, fmt.Errorf("verify failed: %w", err)
	}
	return &msg, nil
}

// ResendVerification asks for a fresh verification email
func (c *APIClient) ResendVerification(email string) (*Message, error) {
	resp, err := c.do(http.MethodPost, "/account/resend-verification", map[string]string{"email": email}, "", "")
	if err != nil {
		return nil, fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	var msg Message
	if err := decode(resp, &msg, http.StatusOK); err != nil {
		return nil, fmt.Errorf("resend failed: %w", err)
	}
	return &msg, nil
}

// Login returns the access token and the refresh token from the cookie
func (c *APIClient) Login(email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	resp, err := c.do(http.MethodPost, "/account/login", body, "", "")
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	return readSession(resp)
}

// Refresh rotates the refresh token. accessToken may be expired.
func (c *APIClient) Refresh(accessToken, refreshToken string) (*Session, error) {
	resp, err := c.do(http.MethodPost, "/account/refresh", nil, accessToken, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	return readSession(resp)
}

// Logout revokes the refresh token
func (c *APIClient) Logout(accessToken, refreshToken string) (*Message, error) {
	resp, err := c.do(http.MethodPost, "/account/logout", nil, accessToken, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	var msg Message
	if err := decode(resp, &msg, http.StatusOK); err != nil {
		return nil, fmt.Errorf("logout failed: %w", err)
	}
	return &msg, nil
}

// ListUsers returns a page of accounts. Requires an Admin token.
func (c *APIClient) ListUsers(accessToken string, limit, offset int) ([]User, error) {
	path := fmt.Sprintf("/users?limit=%d&offset=%d", limit, offset)
	resp, err := c.do(http.MethodGet, path, nil, accessToken, "")
	if err != nil {
		return nil, fmt.Errorf("list users request failed: %w", err)
	}
	defer resp.Body.Close()

	var users []User
	if err := decode(resp, &users, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list users failed: %w", err)
	}
	return users, nil
}

// ChangeRole sets the role of a user. Requires an Admin token.
func (c *APIClient) ChangeRole(accessToken, userID, role string) (*User, error) {
	resp, err := c.do(http.MethodPost, "/users/"+userID+"/role", map[string]string{"role": role}, accessToken, "")
	if err != nil {
		return nil, fmt.Errorf("change role request failed: %w", err)
	}
	defer resp.Body.Close()

	var user User
	if err := decode(resp, &user, http.StatusOK); err != nil {
		return nil, fmt.Errorf("change role failed: %w", err)
	}
	return &user, nil
}

// WatchActivity streams auth events to fn until the connection closes
func (c *APIClient) WatchActivity(accessToken string, fn func(msgType string, payload json.RawMessage)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws/activity?token=" + url.QueryEscape(accessToken)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("connect failed: %w", err)
	}
	defer conn.Close()

	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(msg.Type, msg.Payload)
	}
}

// HTTP helpers

func readSession(resp *http.Response) (*Session, error) {
	var session Session
	if err := decode(resp, &session, http.StatusOK); err != nil {
		return nil, err
	}
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			session.RefreshToken = c.Value
		}
	}
	return &session, nil
}

// decode reads the JSON body into out. A status other than want is an error
// carrying the server message.
func decode(resp *http.Response, out interface{}, want int) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		var msg Message
		if json.Unmarshal(data, &msg) == nil && msg.Message != "" {
			if m, ok := out.(*Message); ok {
				*m = msg
			}
			return fmt.Errorf("status %d: %s", resp.StatusCode, msg.Message)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) do(method, path string, body interface{}, token, refreshToken string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refreshToken})
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

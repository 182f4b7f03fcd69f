package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dom/autosalon/internal/api/middleware"
	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/service"
)

const (
	RefreshCookieName = "refreshToken"
	RefreshCookiePath = "/api/account"
)

type AuthHandler struct {
	authService  *service.AuthService
	cookieSecure bool
	logger       logging.Logger
}

func NewAuthHandler(authService *service.AuthService, cookieSecure bool, logger logging.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cookieSecure: cookieSecure, logger: logger}
}

type LoginResponse struct {
	Flag      bool            `json:"flag"`
	Message   string          `json:"message"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Role      domain.RoleName `json:"role"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		if result != nil && errors.Is(err, domain.ErrVerificationEmailFailed) {
			h.logger.Error(r.Context(), "account created without verification email", "user_id", result.User.ID, "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{
				Response:       Response{Message: "Account created, but the verification email could not be sent. Please request a new one."},
				AccountCreated: true,
			})
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "Account Created. Please verify your email.")
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authService.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.authService.Login(r.Context(), req)
	if err != nil {
		loginError(w, r, h.logger, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusOK, LoginResponse{
		Flag:      true,
		Message:   "Login completed",
		Token:     session.AccessToken,
		ExpiresAt: session.AccessTokenExpiresAt,
		Role:      session.Role,
	})
}

// Refresh rotates the refresh cookie. The caller presents the old refresh
// token in the cookie and its last access token, possibly expired, as bearer.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	accessToken, ok := middleware.BearerToken(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session, err := h.authService.Refresh(r.Context(), cookie.Value, accessToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusOK, LoginResponse{
		Flag:      true,
		Message:   "Token refreshed",
		Token:     session.AccessToken,
		ExpiresAt: session.AccessTokenExpiresAt,
		Role:      session.Role,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// Logout is public so an expired session can still clear its cookie. The
	// user id is only known when a valid bearer came along.
	userID, _ := middleware.GetUserID(r.Context())
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		if err := h.authService.Logout(r.Context(), cookie.Value, userID); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeMessage(w, http.StatusOK, "Logged out")
}

// ResendVerification always answers the same way so the endpoint cannot be
// used to discover registered emails.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "If the account exists and is not verified, a new verification email has been sent.")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token *domain.RefreshToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token.Token,
		Path:     RefreshCookiePath,
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dom/autosalon/internal/api/middleware"
	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/websocket"
	ws "github.com/gorilla/websocket"
)

// WebSocketHandler streams auth activity to admin dashboards.
type WebSocketHandler struct {
	hub       *websocket.Hub
	validator middleware.TokenValidator
	upgrader  ws.Upgrader
	logger    logging.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, validator middleware.TokenValidator, frontendOrigin string, logger logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin(frontendOrigin),
		},
		logger: logger,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade request
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.validator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}
	if !claims.HasRole(domain.RoleAdmin) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// allowOrigin accepts requests without an Origin header, same-host requests
// and the configured storefront.
func allowOrigin(frontendOrigin string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if frontendOrigin != "" && strings.EqualFold(origin, strings.TrimRight(frontendOrigin, "/")) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

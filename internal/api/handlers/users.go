package handlers

import (
	"net/http"
	"strconv"

	"github.com/dom/autosalon/internal/api/middleware"
	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserHandler serves the admin user management endpoints.
type UserHandler struct {
	userService *service.UserService
	logger      logging.Logger
}

func NewUserHandler(userService *service.UserService, logger logging.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

type ChangeRoleRequest struct {
	Role domain.RoleName `json:"role"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	users, err := h.userService.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req service.UpdateUserInput
	if !decodeJSON(w, r, &req) {
		return
	}

	actorID, _ := middleware.GetUserID(r.Context())
	user, err := h.userService.Update(r.Context(), actorID, id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	actorID, _ := middleware.GetUserID(r.Context())
	user, err := h.userService.ChangeRole(r.Context(), actorID, id, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	actorID, _ := middleware.GetUserID(r.Context())
	if err := h.userService.Delete(r.Context(), actorID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activity lists recent auth events, optionally for a single user.
func (h *UserHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	var (
		events []*domain.AuthEvent
		err    error
	)
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid user ID", Field: "userId"})
			return
		}
		events, err = h.userService.UserActivity(r.Context(), id, limit)
	} else {
		events, err = h.userService.RecentActivity(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []*domain.AuthEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid user ID", Field: "id"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return value
}

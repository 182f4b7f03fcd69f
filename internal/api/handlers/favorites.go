package handlers

import (
	"net/http"

	"github.com/dom/autosalon/internal/api/middleware"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/service"
	"github.com/go-chi/chi/v5"
)

type FavoriteHandler struct {
	favoriteService *service.FavoriteService
	logger          logging.Logger
}

func NewFavoriteHandler(favoriteService *service.FavoriteService, logger logging.Logger) *FavoriteHandler {
	return &FavoriteHandler{favoriteService: favoriteService, logger: logger}
}

type AddFavoriteRequest struct {
	VehicleID string `json:"vehicleId"`
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	favorites, err := h.favoriteService.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req AddFavoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	favorite, err := h.favoriteService.Add(r.Context(), userID, req.VehicleID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, favorite)
}

func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.favoriteService.Remove(r.Context(), userID, chi.URLParam(r, "vehicleId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

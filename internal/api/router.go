package api

import (
	"net/http"

	"github.com/dom/autosalon/internal/api/handlers"
	"github.com/dom/autosalon/internal/api/middleware"
	"github.com/dom/autosalon/internal/config"
	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/service"
	"github.com/dom/autosalon/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handlers.NewAuthHandler(services.Auth, cfg.CookieSecure, logger)
	userHandler := handlers.NewUserHandler(services.User, logger)
	favoriteHandler := handlers.NewFavoriteHandler(services.Favorite, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, cfg.FrontendOrigin, logger)

	requireAuth := middleware.Auth(services.Auth, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/account", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Get("/verify-email", authHandler.VerifyEmail)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.With(middleware.OptionalAuth(services.Auth)).Post("/logout", authHandler.Logout)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", favoriteHandler.List)
			r.Post("/", favoriteHandler.Add)
			r.Delete("/{vehicleId}", favoriteHandler.Remove)
		})

		// Admin routes
		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/", userHandler.List)
			r.Get("/activity", userHandler.Activity)
			r.Get("/{id}", userHandler.Get)
			r.Put("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
			r.Post("/{id}/role", userHandler.ChangeRole)
		})

		r.Get("/ws/activity", wsHandler.Handle)
	})

	return r
}

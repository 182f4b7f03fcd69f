package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dom/autosalon/internal/api"
	"github.com/dom/autosalon/internal/config"
	"github.com/dom/autosalon/internal/email"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/repository/postgres"
	"github.com/dom/autosalon/internal/service"
	"github.com/dom/autosalon/internal/websocket"
)

func main() {
	// A missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	repos := postgres.NewRepositories(db)

	// Initialize WebSocket hub
	hub := websocket.NewHub(logger)
	go hub.Run()

	var mailer email.Sender
	if cfg.SMTP.Enabled() {
		mailer = email.NewSMTPSender(cfg.SMTP, cfg.FrontendOrigin)
	} else {
		logger.Warn(ctx, "SMTP_HOST not set, verification links will be logged")
		mailer = email.NewLogSender(cfg.FrontendOrigin, logger)
	}

	activity := service.MultiSink{service.NewRepositorySink(repos.AuthEvent), hub}

	services, err := service.NewServices(repos, cfg, mailer, activity, logger)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}

	router := api.NewRouter(services, hub, cfg, logger)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	hub.Stop()

	logger.Info(ctx, "server stopped")
}

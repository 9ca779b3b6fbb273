package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mathpractice/internal/config"
	"mathpractice/internal/database"
	"mathpractice/internal/handlers"
	"mathpractice/internal/logging"
	"mathpractice/internal/repository"
	"mathpractice/internal/security"
	"mathpractice/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	flagEnvFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	flagMigrations := pflag.String("migrations", "", "migrations directory (overrides MIGRATIONS_PATH)")
	pflag.Parse()

	// Load configuration
	cfg := config.Load(*flagEnvFile)
	if *flagMigrations != "" {
		cfg.MigrationsPath = *flagMigrations
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	passwordHash, err := adminPasswordHash(cfg)
	if err != nil {
		logger.Error("failed to hash admin password", logging.Err(err))
		os.Exit(1)
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Error("failed to initialize database", logging.Err(err))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connection established", "type", cfg.DatabaseType)

	applied, err := db.RunMigrations(context.Background(), cfg.MigrationsPath)
	if err != nil {
		logger.Error("failed to run migrations", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("migrations completed", "applied", len(applied))

	// Initialize repositories
	keyRepo := repository.NewIdempotencyRepository(db)
	eventRepo := repository.NewEventRepository(db, keyRepo)

	// Initialize services
	throttle := security.NewLoginThrottle(cfg.LoginWindow, cfg.LoginMaxFailures, cfg.LoginBlockDuration)
	tokens := security.NewTokenIssuer(cfg.SessionSecret, security.AdminSessionPurpose, cfg.SessionMaxAge)
	ingestService := service.NewIngestService(eventRepo, cfg.IngestAPIKey, logger)
	adminAuth := service.NewAdminAuthService(cfg.AdminUsername, passwordHash, throttle, tokens, logger)

	// Initialize handlers
	middleware := handlers.NewMiddleware(ingestService, adminAuth, logger, cfg.TrustProxy)
	ingestHandler := handlers.NewIngestHandler(ingestService, logger)
	adminHandler := handlers.NewAdminHandler(ingestService, adminAuth, logger, cfg.TrustProxy)
	healthHandler := handlers.NewHealthHandler(db, logger)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, middleware, ingestHandler, adminHandler, healthHandler)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.Logging(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background throttle cleanup
	go throttle.Run(ctx, time.Hour)

	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logging.Err(err))
	}
}

// adminPasswordHash prefers a configured bcrypt hash and otherwise hashes the
// plain password once at startup.
func adminPasswordHash(cfg *config.Config) (string, error) {
	if cfg.AdminPasswordHash != "" {
		return cfg.AdminPasswordHash, nil
	}
	return security.HashPassword(cfg.AdminPassword)
}

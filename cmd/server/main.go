package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/text2tracks/backend/internal/config"
	"github.com/text2tracks/backend/internal/httpapp"
	"github.com/text2tracks/backend/internal/logger"
	"github.com/text2tracks/backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if missing := cfg.MissingKeys(); len(missing) > 0 {
		appLogger.Warn("running with partial configuration", "missing", missing)
	}

	// Initialize DB. The health surface stays up without one; /stats answers
	// 503 until a catalog is configured.
	var catalog httpapp.Catalog
	if cfg.HasDatabase() {
		db, err := store.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			appLogger.Error("failed to init catalog database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		catalog = db
	} else {
		appLogger.Warn("DATABASE_URL not set, skipping catalog init")
	}

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Routes
	h := httpapp.NewHandler(catalog, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("server exiting")
}

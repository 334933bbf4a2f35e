package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/text2tracks/backend/internal/blob"
	"github.com/text2tracks/backend/internal/config"
	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/embed"
	"github.com/text2tracks/backend/internal/logger"
	"github.com/text2tracks/backend/internal/store"
	"github.com/text2tracks/backend/internal/transfer"
	"github.com/text2tracks/backend/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Unlike ingestion there is no degraded mode here: without a catalog
	// there is no backlog to drain.
	if !cfg.HasDatabase() {
		appLogger.Error("DATABASE_URL is required, nothing to vectorize without a catalog")
		os.Exit(1)
	}

	db, err := store.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		appLogger.Error("failed to init catalog database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.ModelPath == "" {
		appLogger.Error("CLAP_MODEL_PATH is required")
		os.Exit(1)
	}

	embedder, err := embed.NewClap(cfg.ModelPath, appLogger)
	if err != nil {
		appLogger.Error("failed to load embedding model", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &worker.Worker{
		Catalog:    db,
		Downloader: transfer.NewDownloader(constants.WorkerHTTPTimeout, appLogger),
		Embedder:   embedder,
		ScratchDir: cfg.ScratchDir,
		Log:        appLogger.WithComponent("worker"),
	}

	if cfg.HasBlobStore() {
		bs, err := blob.New(ctx, blob.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			appLogger.Error("failed to init blob store", "error", err)
			os.Exit(1)
		}
		w.Blob = bs
	} else {
		appLogger.Warn("no blob store configured, fetching stored references directly")
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

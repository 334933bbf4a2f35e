package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/text2tracks/backend/internal/blob"
	"github.com/text2tracks/backend/internal/config"
	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/ingest"
	"github.com/text2tracks/backend/internal/logger"
	"github.com/text2tracks/backend/internal/store"
	"github.com/text2tracks/backend/internal/transfer"
)

func main() {
	app := &cli.App{
		Name:  "ingest",
		Usage: "Download dataset audio, upload it to the blob store and catalog it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tsv",
				Usage:    "Path to the dataset TSV file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Scratch directory for downloaded audio",
				Value: constants.DefaultScratchDir,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rows to ingest (0 = no limit)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	runLog := appLogger.WithRun(uuid.New().String())

	if missing := cfg.MissingKeys(); len(missing) > 0 {
		runLog.Warn("running with partial configuration", "missing", missing)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := &ingest.Pipeline{
		Downloader: transfer.NewDownloader(constants.IngestHTTPTimeout, runLog),
		CDNBase:    cfg.DatasetCDNBase,
		ScratchDir: c.String("output"),
		Limit:      c.Int("limit"),
		Log:        runLog.WithComponent("ingest"),
	}

	// Absent stores mean degraded runs, not refusals: the pipeline logs what
	// it cannot do and keeps downloading.
	if cfg.HasDatabase() {
		db, err := store.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to init catalog database: %w", err)
		}
		defer db.Close()
		pipeline.Catalog = db
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
			return fmt.Errorf("failed to init blob store: %w", err)
		}
		if err := bs.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure bucket: %w", err)
		}
		pipeline.Blob = bs
	}

	stats, err := pipeline.Run(ctx, c.String("tsv"))
	if err != nil {
		return err
	}

	runLog.Info("ingestion complete",
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return nil
}

// Package ingest drives dataset rows through download, blob upload and
// catalog insert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/dataset"
	"github.com/text2tracks/backend/internal/domain"
	"github.com/text2tracks/backend/internal/filesystem"
	"github.com/text2tracks/backend/internal/logger"
	"github.com/text2tracks/backend/internal/tagging"
)

// Catalog is the slice of the track store the pipeline writes to.
type Catalog interface {
	TrackExists(ctx context.Context, id string) (bool, error)
	CreateTrack(ctx context.Context, track *domain.Track) error
}

// BlobStore is the slice of the blob client the pipeline uploads through.
type BlobStore interface {
	Upload(ctx context.Context, src, key string) (string, error)
}

// Downloader fetches a remote asset to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Stats summarizes one ingestion pass.
type Stats struct {
	Processed int
	Skipped   int
	Failed    int
}

// Pipeline ingests dataset rows. Catalog and Blob may be nil, which runs
// the pipeline degraded: downloads still happen, but rows are not uploaded
// or recorded and local files are kept.
type Pipeline struct {
	Catalog    Catalog
	Blob       BlobStore
	Downloader Downloader
	CDNBase    string
	ScratchDir string
	Limit      int
	Log        *logger.Logger
}

type rowOutcome int

const (
	rowProcessed rowOutcome = iota
	rowSkipped
	rowFailed
)

// Run processes the dataset at datasetPath row by row. Row-level failures
// are logged and counted, never fatal; Run only errors when the dataset is
// unreadable, the scratch directory cannot be created, or ctx ends.
func (p *Pipeline) Run(ctx context.Context, datasetPath string) (Stats, error) {
	var stats Stats

	log := p.Log
	if log == nil {
		log = logger.Default().WithComponent("ingest")
	}

	if p.Downloader == nil {
		return stats, errors.New("downloader is required")
	}
	if err := filesystem.EnsureDir(p.ScratchDir); err != nil {
		return stats, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	reader, err := dataset.Open(datasetPath, p.CDNBase, log)
	if err != nil {
		return stats, err
	}
	defer reader.Close() //nolint:errcheck

	log.Info("starting ingestion", "dataset", datasetPath, "limit", p.Limit)
	if p.Catalog == nil {
		log.Warn("no catalog store configured, ingested rows will not be recorded")
	}
	if p.Blob == nil {
		log.Warn("no blob store configured, downloads will stay in the scratch directory")
	}

	for {
		if p.Limit > 0 && stats.Processed >= p.Limit {
			log.Info("row limit reached", "limit", p.Limit)
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		switch p.processRow(ctx, log.WithTrack(row.ID), row) {
		case rowProcessed:
			stats.Processed++
		case rowSkipped:
			stats.Skipped++
		case rowFailed:
			stats.Failed++
		}
	}

	log.Info("ingestion pass finished",
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	return stats, nil
}

// processRow advances a single dataset row as far as the configured stores
// allow. Rows advance when their asset is downloaded and either uploaded or
// deliberately kept local (degraded mode).
func (p *Pipeline) processRow(ctx context.Context, log *logger.Logger, row *dataset.Row) rowOutcome {
	if p.Catalog != nil {
		exists, err := p.Catalog.TrackExists(ctx, row.ID)
		if err != nil {
			log.Warn("dedup check failed, attempting ingestion anyway", "error", err)
		} else if exists {
			log.Debug("track already ingested, skipping")
			return rowSkipped
		}
	}

	scratch := p.scratchPath(row)
	if _, err := os.Stat(scratch); err == nil {
		log.Debug("reusing existing scratch file", "path", scratch)
	} else {
		if err := p.Downloader.Download(ctx, row.URL, scratch); err != nil {
			log.Warn("download failed, skipping row", "url", row.URL, "error", err)
			return rowFailed
		}
	}

	// Best effort only; untagged or odd files still get placeholders later.
	meta, err := tagging.ReadTags(scratch)
	if err != nil {
		log.Debug("tag read failed", "error", err)
	}

	if p.Blob == nil {
		log.Warn("blob store unavailable, keeping local copy", "path", scratch)
		return rowProcessed
	}

	key := constants.TracksKeyPrefix + filepath.Base(scratch)
	ref, err := p.Blob.Upload(ctx, scratch, key)
	if err != nil {
		// The local copy stays put so a re-run can retry without re-downloading.
		log.Warn("upload failed, skipping row", "key", key, "error", err)
		return rowFailed
	}

	insertFailed := false
	if p.Catalog == nil {
		log.Warn("catalog unavailable, uploaded without a catalog entry", "ref", ref)
	} else {
		track := &domain.Track{
			ID:       row.ID,
			Title:    meta.Title,
			Artist:   firstNonEmpty(meta.Artist, row.ArtistID),
			Tags:     row.Tags,
			AudioURL: ref,
		}
		if err := p.Catalog.CreateTrack(ctx, track); err != nil {
			log.Warn("catalog insert failed", "error", err)
			insertFailed = true
		}
	}

	// The asset lives in the blob store now; the scratch copy goes away
	// whether or not the catalog write stuck.
	if err := os.Remove(scratch); err != nil {
		log.Warn("failed to remove scratch file", "path", scratch, "error", err)
	}

	if insertFailed {
		return rowFailed
	}
	log.Info("track ingested", "ref", ref)
	return rowProcessed
}

// scratchPath builds the local download target for a row. The id comes from
// external data, so it is sanitized before touching the filesystem.
func (p *Pipeline) scratchPath(row *dataset.Row) string {
	name := filesystem.Sanitize(row.ID) + filesystem.ExtFromURL(row.URL)
	return filepath.Join(p.ScratchDir, name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

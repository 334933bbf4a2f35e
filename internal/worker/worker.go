// Package worker drains the vectorization backlog: catalog entries without
// an embedding are fetched, embedded and written back, one at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/text2tracks/backend/internal/blob"
	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/domain"
	"github.com/text2tracks/backend/internal/embed"
	"github.com/text2tracks/backend/internal/filesystem"
	"github.com/text2tracks/backend/internal/logger"
	"github.com/text2tracks/backend/internal/store"
)

// Catalog is the slice of the track store the worker claims from and
// persists to.
type Catalog interface {
	NextPendingTrack(ctx context.Context) (*domain.Track, error)
	SetTrackEmbedding(ctx context.Context, id string, embedding []float32) error
}

// BlobResolver turns stored audio references back into fetchable URLs.
type BlobResolver interface {
	Resolve(ref string) blob.Resolution
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Downloader fetches a remote URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// outcome classifies one pass over the backlog and decides how long the
// loop waits before the next one.
type outcome int

const (
	// outcomeProcessed means an embedding was persisted; poll again at once.
	outcomeProcessed outcome = iota
	// outcomeIdle means the backlog is empty; sleep a full poll interval.
	outcomeIdle
	// outcomeFailed means the entry stays pending; cool down before retrying.
	outcomeFailed
)

// Worker is the single-threaded vectorization loop. Blob may be nil, in
// which case audio references are fetched as-is instead of being presigned.
type Worker struct {
	Catalog    Catalog
	Blob       BlobResolver
	Downloader Downloader
	Embedder   embed.Embedder

	// ScratchDir holds in-flight audio; the OS temp dir when empty.
	ScratchDir string

	// PollInterval and Cooldown default to the shared constants when zero.
	PollInterval time.Duration
	Cooldown     time.Duration

	Log *logger.Logger
}

// Run loops until ctx is cancelled, returning the cancellation cause. Every
// pass claims at most one pending track; the pass outcome picks the delay
// before the next pass.
func (w *Worker) Run(ctx context.Context) error {
	if w.Catalog == nil {
		return errors.New("worker requires a catalog store")
	}
	if w.Downloader == nil {
		return errors.New("worker requires a downloader")
	}
	if w.Embedder == nil {
		return errors.New("worker requires an embedder")
	}

	log := w.logger()
	log.Info("starting vectorization worker",
		"scratch_dir", w.scratchDir(),
		"poll_interval", w.pollInterval(),
		"cooldown", w.cooldown(),
		"dimension", w.Embedder.Dimension())

	for {
		if err := ctx.Err(); err != nil {
			log.Info("vectorization worker stopped")
			return err
		}

		var delay time.Duration
		switch w.runOnce(ctx) {
		case outcomeProcessed:
			// Keep draining while there is work.
		case outcomeIdle:
			delay = w.pollInterval()
		case outcomeFailed:
			delay = w.cooldown()
		}

		if delay > 0 {
			if err := w.wait(ctx, delay); err != nil {
				log.Info("vectorization worker stopped")
				return err
			}
		}
	}
}

// runOnce claims and processes at most one pending track. A panic anywhere
// in the pass is contained here so one bad file cannot take the loop down.
func (w *Worker) runOnce(ctx context.Context) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger().Error("panic while vectorizing", "panic", r)
			result = outcomeFailed
		}
	}()

	track, err := w.Catalog.NextPendingTrack(ctx)
	if errors.Is(err, store.ErrNoPendingTracks) {
		return outcomeIdle
	}
	if err != nil {
		w.logger().Error("failed to claim pending track", "error", err)
		return outcomeFailed
	}

	log := w.logger().WithTrack(track.ID)
	log.Debug("claimed pending track", "ref", track.AudioURL)

	url, err := w.resolveURL(ctx, track)
	if err != nil {
		log.Warn("failed to resolve audio reference", "ref", track.AudioURL, "error", err)
		return outcomeFailed
	}

	vector, err := w.vectorize(ctx, log, track, url)
	if err != nil {
		log.Warn("vectorization failed", "error", err)
		return outcomeFailed
	}

	if err := w.Catalog.SetTrackEmbedding(ctx, track.ID, vector); err != nil {
		if errors.Is(err, store.ErrNotPending) {
			log.Info("track vectorized elsewhere, dropping result")
			return outcomeProcessed
		}
		log.Error("failed to persist embedding", "error", err)
		return outcomeFailed
	}

	log.Info("track vectorized", "dimension", len(vector))
	return outcomeProcessed
}

// resolveURL turns the stored reference into something fetchable. References
// that parse against the blob layout get a short-lived presigned GET; anything
// else is fetched as recorded.
func (w *Worker) resolveURL(ctx context.Context, track *domain.Track) (string, error) {
	if track.AudioURL == "" {
		return "", errors.New("track has no audio reference")
	}
	if w.Blob == nil {
		return track.AudioURL, nil
	}

	res := w.Blob.Resolve(track.AudioURL)
	if !res.Parsed() {
		return res.Raw, nil
	}

	url, err := w.Blob.PresignGet(ctx, res.Key, constants.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", res.Key, err)
	}
	return url, nil
}

// vectorize downloads the audio to a scratch file and runs the embedder on
// it. The scratch file is removed whether or not the embed succeeds.
func (w *Worker) vectorize(ctx context.Context, log *logger.Logger, track *domain.Track, url string) ([]float32, error) {
	scratch, err := w.fetchScratch(ctx, track, url)
	if err != nil {
		return nil, err
	}
	defer os.Remove(scratch) //nolint:errcheck // scratch never outlives the pass

	log.Debug("audio fetched", "scratch", scratch)

	vector, err := w.Embedder.EmbedFile(ctx, scratch)
	if err != nil {
		return nil, err
	}
	if len(vector) != constants.EmbeddingDim {
		return nil, fmt.Errorf("embedder returned %d dimensions, want %d", len(vector), constants.EmbeddingDim)
	}
	return vector, nil
}

// fetchScratch downloads the audio into a unique scratch file and returns
// its path. The extension comes from the stored reference so the decoder
// can pick the right format. The caller owns removal.
func (w *Worker) fetchScratch(ctx context.Context, track *domain.Track, url string) (string, error) {
	dir := w.scratchDir()
	if err := filesystem.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}

	pattern := filesystem.Sanitize(track.ID) + "-*" + filesystem.ExtFromURL(track.AudioURL)
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	scratch := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(scratch) //nolint:errcheck // best effort
		return "", err
	}

	if err := w.Downloader.Download(ctx, url, scratch); err != nil {
		os.Remove(scratch) //nolint:errcheck // best effort
		return "", err
	}
	return scratch, nil
}

// wait sleeps for delay unless the context is cancelled first.
func (w *Worker) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) scratchDir() string {
	if w.ScratchDir != "" {
		return w.ScratchDir
	}
	return os.TempDir()
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval > 0 {
		return w.PollInterval
	}
	return constants.WorkerPollInterval
}

func (w *Worker) cooldown() time.Duration {
	if w.Cooldown > 0 {
		return w.Cooldown
	}
	return constants.WorkerFailureCooldown
}

func (w *Worker) logger() *logger.Logger {
	if w.Log == nil {
		w.Log = logger.Default().WithComponent("worker")
	}
	return w.Log
}

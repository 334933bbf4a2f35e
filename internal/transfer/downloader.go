// Package transfer moves audio payloads from remote sources onto local
// scratch storage.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/logger"
)

// ErrAllAttemptsFailed wraps the last cause once the retry budget is spent.
var ErrAllAttemptsFailed = errors.New("download failed after all attempts")

// Downloader fetches remote audio with linear retry backoff. Uploads have
// no counterpart here: the blob store uploads once and fails closed.
type Downloader struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	log         *logger.Logger
}

// NewDownloader creates a Downloader whose requests time out after the
// given duration. Retry count and backoff follow the shared constants.
func NewDownloader(timeout time.Duration, log *logger.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		maxAttempts: constants.DownloadRetryCount,
		baseDelay:   constants.DownloadRetryBase,
		log:         log.WithComponent("transfer"),
	}
}

// Download streams url into dest, retrying failed attempts with a linear
// backoff of baseDelay × attempt number. A partial file never survives a
// failed attempt.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	var lastErr error

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.wait(ctx, time.Duration(attempt)*d.baseDelay); err != nil {
				return err
			}
		}

		if err := d.fetch(ctx, url, dest); err != nil {
			lastErr = err
			d.log.Warn("download attempt failed",
				"url", url,
				"attempt", attempt+1,
				"max_attempts", d.maxAttempts,
				"error", err)
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrAllAttemptsFailed, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // deferred cleanup

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()       //nolint:errcheck // removing the file anyway
		os.Remove(dest) //nolint:errcheck // partial file must not look like success
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()       //nolint:errcheck // removing the file anyway
		os.Remove(dest) //nolint:errcheck // partial file must not look like success
		return err
	}

	return f.Close()
}

// wait sleeps for delay unless the context is cancelled first.
func (d *Downloader) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

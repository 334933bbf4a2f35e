// Package dataset reads MTG-Jamendo style TSV track listings.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/text2tracks/backend/internal/domain"
	"github.com/text2tracks/backend/internal/logger"
)

// Row is one dataset entry after header resolution and URL normalization.
type Row struct {
	ID       string
	ArtistID string
	AlbumID  string
	URL      string
	Tags     domain.Tags
}

// Reader streams rows out of a TSV dataset file. Malformed rows are
// skipped with a warning, never surfaced as errors.
type Reader struct {
	cdnBase string
	f       *os.File
	csv     *csv.Reader
	cols    map[string]int
	log     *logger.Logger
}

// Open prepares a Reader for the TSV file at path. Relative audio paths
// are resolved against cdnBase.
func Open(path, cdnBase string, log *logger.Logger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	// Tag annotations ride along as extra trailing fields, so row widths vary
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		f.Close() //nolint:errcheck // open failed anyway
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	return &Reader{
		cdnBase: cdnBase,
		f:       f,
		csv:     cr,
		cols:    resolveColumns(header),
		log:     log.WithComponent("dataset"),
	}, nil
}

// Next returns the next usable row, or io.EOF when the file is exhausted.
func (r *Reader) Next() (*Row, error) {
	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			r.log.Warn("skipping malformed dataset row", "error", err)
			continue
		}

		id := r.lookup(record, "track_id", "id")
		rawPath := r.lookup(record, "path", "audio_url", "mp3_url")
		if id == "" || rawPath == "" {
			r.log.Warn("skipping dataset row without id or audio path", "id", id)
			continue
		}

		return &Row{
			ID:       id,
			ArtistID: r.lookup(record, "artist_id"),
			AlbumID:  r.lookup(record, "album_id"),
			URL:      NormalizeURL(rawPath, r.cdnBase),
			Tags:     r.parseTags(record),
		}, nil
	}
}

func (r *Reader) Close() error {
	return r.f.Close()
}

// lookup returns the first non-empty value among the named columns.
func (r *Reader) lookup(record []string, names ...string) string {
	for _, n := range names {
		if idx, ok := r.cols[n]; ok && idx < len(record) {
			if v := strings.TrimSpace(record[idx]); v != "" {
				return v
			}
		}
	}
	return ""
}

// parseTags collects category---value annotations from the tags column and
// any trailing fields. Values sharing a category are comma-joined.
func (r *Reader) parseTags(record []string) domain.Tags {
	tags := domain.Tags{}

	tagsIdx, ok := r.cols["tags"]
	if !ok {
		return tags
	}

	for i := tagsIdx; i < len(record); i++ {
		for _, entry := range strings.Fields(record[i]) {
			category, value, found := strings.Cut(entry, "---")
			if !found || category == "" || value == "" {
				continue
			}
			if existing, dup := tags[category]; dup {
				tags[category] = existing + "," + value
			} else {
				tags[category] = value
			}
		}
	}

	return tags
}

// NormalizeURL turns a dataset audio path into an absolute source URL.
// Absolute http(s) values pass through untouched.
func NormalizeURL(raw, cdnBase string) string {
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return strings.TrimRight(cdnBase, "/") + "/" + strings.TrimLeft(raw, "/")
}

func resolveColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/domain"
)

// ErrNoPendingTracks signals an empty vectorization backlog.
var ErrNoPendingTracks = errors.New("no tracks pending vectorization")

// ErrNotPending is returned when an embedding write targets a track that is
// missing or already vectorized.
var ErrNotPending = errors.New("track is not pending vectorization")

func (db *DB) CreateTrack(ctx context.Context, track *domain.Track) error {
	track.Normalize()

	query := `INSERT INTO tracks (id, title, artist, tags, audio_url, embedding, semantic_id)
		VALUES (:id, :title, :artist, :tags, :audio_url, :embedding, :semantic_id)
		ON CONFLICT (id) DO NOTHING`

	if _, err := db.NamedExecContext(ctx, query, track); err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (db *DB) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	query := `SELECT * FROM tracks WHERE id = $1`

	var track domain.Track
	if err := db.GetContext(ctx, &track, query, id); err != nil {
		return nil, err
	}
	return &track, nil
}

func (db *DB) TrackExists(ctx context.Context, id string) (bool, error) {
	query := `SELECT COUNT(*) FROM tracks WHERE id = $1`

	var count int
	err := db.GetContext(ctx, &count, query, id)
	return count > 0, err
}

// NextPendingTrack claims the oldest catalog entry without an embedding.
// Returns ErrNoPendingTracks when the backlog is empty.
func (db *DB) NextPendingTrack(ctx context.Context) (*domain.Track, error) {
	query := `SELECT * FROM tracks WHERE embedding IS NULL ORDER BY id LIMIT 1`

	var track domain.Track
	err := db.GetContext(ctx, &track, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPendingTracks
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// SetTrackEmbedding persists a vector for a pending track. The IS NULL guard
// keeps embeddings write-once: a row that was vectorized in the meantime is
// reported as ErrNotPending and left untouched.
func (db *DB) SetTrackEmbedding(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) != constants.EmbeddingDim {
		return fmt.Errorf("embedding must have %d dimensions, got %d", constants.EmbeddingDim, len(embedding))
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	vec := pgvector.NewVector(embedding)
	result, err := tx.ExecContext(ctx,
		`UPDATE tracks SET embedding = $1 WHERE id = $2 AND embedding IS NULL`, vec, id)
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("track %s: %w", id, ErrNotPending)
	}

	return tx.Commit()
}

func (db *DB) CountTracks(ctx context.Context) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tracks`)
	return count, err
}

func (db *DB) CountPendingTracks(ctx context.Context) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tracks WHERE embedding IS NULL`)
	return count, err
}

package domain

import (
	"github.com/pgvector/pgvector-go"

	"github.com/text2tracks/backend/internal/constants"
)

// Track represents one cataloged audio clip.
//
// Embedding is nil from ingestion until the vectorization worker persists
// a vector. SemanticID belongs to a downstream training stage and is never
// written by this pipeline.
type Track struct {
	ID         string           `json:"id" db:"id"`
	Title      string           `json:"title" db:"title"`
	Artist     string           `json:"artist" db:"artist"`
	Tags       Tags             `json:"tags" db:"tags"`
	AudioURL   string           `json:"audio_url" db:"audio_url"`
	Embedding  *pgvector.Vector `json:"-" db:"embedding"`
	SemanticID *string          `json:"semantic_id,omitempty" db:"semantic_id"`
}

// Vectorized reports whether the track already carries an embedding.
func (t *Track) Vectorized() bool {
	return t.Embedding != nil
}

// Normalize fills placeholder metadata so a track is never cataloged with
// empty display fields.
func (t *Track) Normalize() {
	if t.Title == "" {
		t.Title = constants.TitlePlaceholderPrefix + t.ID
	}
	if t.Artist == "" {
		t.Artist = constants.UnknownArtist
	}
	if t.Tags == nil {
		t.Tags = Tags{}
	}
}

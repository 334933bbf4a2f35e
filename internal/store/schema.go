package store

// Schema holds the catalog DDL. The vector extension must exist before the
// tracks table because of the embedding column type.
var Schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT,
		artist TEXT,
		tags JSONB DEFAULT '{}'::jsonb,
		audio_url TEXT NOT NULL,
		embedding vector(512),
		semantic_id TEXT
	)`,

	// Partial index keeps the worker's pending poll cheap as the catalog grows
	`CREATE INDEX IF NOT EXISTS idx_tracks_pending ON tracks (id) WHERE embedding IS NULL`,
}

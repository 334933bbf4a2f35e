package store

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

type DB struct {
	*sqlx.DB
}

// NewPostgresDB opens the catalog database, verifies connectivity and
// applies the schema.
func NewPostgresDB(databaseURL string) (*DB, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Apply schema statements one at a time: the pgx driver rejects
	// multi-statement batches over the extended protocol.
	for _, stmt := range Schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

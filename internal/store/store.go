// Package store is the relational entity store for the membership core.
// Queries follow the raw-SQL style of the data-access layer; every method
// takes a context and maps sql.ErrNoRows to a NOT_FOUND error.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"association-backend/internal/common/logger"
)

//go:embed schema.sql
var schemaSQL string

// Store bundles entity queries over a single postgres connection pool.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// New creates a Store over an open connection pool.
func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying pool for components that manage their own
// transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies the embedded schema. All statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

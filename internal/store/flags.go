package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// FlagStore is a schemaless key -> bool map backed by the flags table.
// The taken and notified namespaces share it under disjoint key prefixes.
type FlagStore struct {
	db *sqlx.DB
}

func NewFlagStore(db *sqlx.DB) *FlagStore {
	return &FlagStore{db: db}
}

// Get reports whether the flag is set. Read failures fail open to false:
// an unreadable flag means not yet taken / not yet notified.
func (s *FlagStore) Get(ctx context.Context, key string) bool {
	var one int
	err := s.db.GetContext(ctx, &one, `SELECT 1 FROM flags WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		log.Printf("flag store: read %q failed, treating as unset: %v", key, err)
		return false
	}
	return true
}

// Set records the flag. Setting an already-set flag is a no-op.
func (s *FlagStore) Set(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO flags (key) VALUES (?)`, key); err != nil {
		return fmt.Errorf("store: set flag %q: %w", key, err)
	}
	return nil
}

// Clear removes the flag. Clearing an unset flag is a no-op.
func (s *FlagStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flags WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store: clear flag %q: %w", key, err)
	}
	return nil
}

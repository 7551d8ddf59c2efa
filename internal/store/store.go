// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists watches, their reconciled results, and batch-run
// progress in an embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/figure-watch/internal/reconcile"
)

// ErrNotFound is returned when a watch or result does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the figure-watch SQLite database.
type Store struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates the database at path and creates the schema if it
// does not exist. Write transactions take the database lock at BEGIN so
// concurrent reconciliations of one watch cannot interleave.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=10000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS watches (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			search_terms TEXT NOT NULL,
			negative_filters TEXT NOT NULL DEFAULT '[]',
			sources TEXT NOT NULL DEFAULT '{}',
			strict INTEGER NOT NULL DEFAULT 0,
			new_count INTEGER NOT NULL DEFAULT 0,
			last_updated TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			watch_id TEXT NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
			link TEXT NOT NULL,
			title TEXT NOT NULL,
			image TEXT,
			price TEXT,
			bid_price TEXT,
			bin_price TEXT,
			end_time TEXT,
			source TEXT NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen TEXT,
			is_new INTEGER NOT NULL DEFAULT 0,
			hidden INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (watch_id, link)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_visible ON results(watch_id, hidden)`,
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS batch_pending (
			run_id TEXT NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
			watch_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (run_id, watch_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// InTx runs fn in one write transaction.
func (s *Store) InTx(ctx context.Context, fn func(reconcile.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(resultTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

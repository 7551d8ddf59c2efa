// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pgstore is the PostgreSQL implementation of the figure-watch
// store, for deployments that share one database between several hosts.
// It offers the same operations as package store.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pdiddy/figure-watch/internal/reconcile"
	"github.com/pdiddy/figure-watch/internal/store"
)

// ErrNotFound is shared with the SQLite store so callers can test for
// either with errors.Is.
var ErrNotFound = store.ErrNotFound

const defaultMaxConns = 4

// Store manages the figure-watch PostgreSQL schema.
type Store struct {
	pool *pgxpool.Pool
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if cfg.MaxConns <= 0 || cfg.MaxConns > defaultMaxConns*4 {
		cfg.MaxConns = defaultMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS watches (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			search_terms TEXT[] NOT NULL,
			negative_filters TEXT[] NOT NULL DEFAULT '{}',
			sources JSONB NOT NULL DEFAULT '{}',
			strict BOOLEAN NOT NULL DEFAULT FALSE,
			new_count INTEGER NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			watch_id TEXT NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
			link TEXT NOT NULL,
			title TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			bid_price TEXT NOT NULL DEFAULT '',
			bin_price TEXT NOT NULL DEFAULT '',
			end_time TIMESTAMPTZ,
			source TEXT NOT NULL,
			first_seen TIMESTAMPTZ NOT NULL,
			last_seen TIMESTAMPTZ,
			is_new BOOLEAN NOT NULL DEFAULT FALSE,
			hidden BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (watch_id, link)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_visible ON results(watch_id, hidden)`,
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS batch_pending (
			run_id TEXT NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
			watch_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (run_id, watch_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// InTx runs fn in one transaction. The first Results call locks the
// watch row, serialising reconciliations of the same watch across hosts.
func (s *Store) InTx(ctx context.Context, fn func(reconcile.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(resultTx{q: tx, lock: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

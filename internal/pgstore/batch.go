// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StartBatch records a new batch run over watchIDs, closing any earlier
// unfinished run, and returns the new run's ID.
func (s *Store) StartBatch(ctx context.Context, watchIDs []string) (string, error) {
	runID := uuid.NewString()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE batch_runs SET finished_at = now() WHERE finished_at IS NULL`); err != nil {
			return fmt.Errorf("closing previous batch: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO batch_runs (id, started_at) VALUES ($1, now())`, runID); err != nil {
			return fmt.Errorf("inserting batch run: %w", err)
		}

		batch := &pgx.Batch{}
		for i, id := range watchIDs {
			batch.Queue(`INSERT INTO batch_pending (run_id, watch_id, position) VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`, runID, id, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("recording pending watches: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// OpenBatch returns the unfinished batch run and its remaining watches in
// order. runID is empty when no run is open.
func (s *Store) OpenBatch(ctx context.Context) (runID string, pending []string, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM batch_runs WHERE finished_at IS NULL ORDER BY started_at DESC LIMIT 1`,
	).Scan(&runID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying open batch: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT watch_id FROM batch_pending WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return "", nil, fmt.Errorf("querying pending watches: %w", err)
	}
	pending, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", nil, fmt.Errorf("scanning pending watches: %w", err)
	}
	return runID, pending, nil
}

// CompleteBatchItem removes watchID from the run's pending set.
func (s *Store) CompleteBatchItem(ctx context.Context, runID, watchID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM batch_pending WHERE run_id = $1 AND watch_id = $2`, runID, watchID)
	if err != nil {
		return fmt.Errorf("completing batch item: %w", err)
	}
	return nil
}

// FinishBatch marks the run finished.
func (s *Store) FinishBatch(ctx context.Context, runID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM batch_pending WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("clearing pending watches: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE batch_runs SET finished_at = now() WHERE id = $1`, runID)
		if err != nil {
			return fmt.Errorf("finishing batch: %w", err)
		}
		return requireAffected(tag, "batch "+runID)
	})
}

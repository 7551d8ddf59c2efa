// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartBatch records a new batch run over watchIDs and returns its ID.
// Any earlier unfinished run is closed first.
func (s *Store) StartBatch(ctx context.Context, watchIDs []string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`UPDATE batch_runs SET finished_at = ? WHERE finished_at IS NULL`, now); err != nil {
		return "", fmt.Errorf("closing previous batch: %w", err)
	}

	runID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batch_runs (id, started_at) VALUES (?, ?)`, runID, now); err != nil {
		return "", fmt.Errorf("inserting batch run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO batch_pending (run_id, watch_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range watchIDs {
		if _, err := stmt.ExecContext(ctx, runID, id, i); err != nil {
			return "", fmt.Errorf("recording pending watch %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// OpenBatch returns the most recent unfinished batch run and the watches
// it has not processed yet, in their original order. runID is empty when
// no run is open.
func (s *Store) OpenBatch(ctx context.Context) (runID string, pending []string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM batch_runs WHERE finished_at IS NULL ORDER BY started_at DESC LIMIT 1`,
	).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying open batch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT watch_id FROM batch_pending WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return "", nil, fmt.Errorf("querying pending watches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", nil, fmt.Errorf("scanning pending watch: %w", err)
		}
		pending = append(pending, id)
	}
	return runID, pending, rows.Err()
}

// CompleteBatchItem removes watchID from the run's pending set.
func (s *Store) CompleteBatchItem(ctx context.Context, runID, watchID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM batch_pending WHERE run_id = ? AND watch_id = ?`, runID, watchID)
	if err != nil {
		return fmt.Errorf("completing batch item: %w", err)
	}
	return nil
}

// FinishBatch marks the run finished and drops any remaining pending rows.
func (s *Store) FinishBatch(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_pending WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clearing pending watches: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE batch_runs SET finished_at = ? WHERE id = ?`, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("finishing batch: %w", err)
	}
	if err := requireAffected(res, "batch "+runID); err != nil {
		return err
	}
	return tx.Commit()
}

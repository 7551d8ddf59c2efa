// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pdiddy/figure-watch/pkg/types"
)

const resultColumns = `watch_id, link, title, image, price, bid_price, bin_price, end_time,
	source, first_seen, last_seen, is_new, hidden`

// resultTx implements reconcile.Tx.
type resultTx struct {
	q    querier
	lock bool
}

func (t resultTx) Results(ctx context.Context, watchID string) ([]types.Result, error) {
	if t.lock {
		var id string
		err := t.q.QueryRow(ctx, `SELECT id FROM watches WHERE id = $1 FOR UPDATE`, watchID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("watch %s: %w", watchID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("locking watch: %w", err)
		}
	}
	return queryResults(ctx, t.q,
		`SELECT `+resultColumns+` FROM results WHERE watch_id = $1 ORDER BY first_seen, link`, watchID)
}

func (t resultTx) UpsertResult(ctx context.Context, r types.Result) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO results (`+resultColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (watch_id, link) DO UPDATE SET
			title = EXCLUDED.title, image = EXCLUDED.image, price = EXCLUDED.price,
			bid_price = EXCLUDED.bid_price, bin_price = EXCLUDED.bin_price, end_time = EXCLUDED.end_time,
			source = EXCLUDED.source, first_seen = EXCLUDED.first_seen, last_seen = EXCLUDED.last_seen,
			is_new = EXCLUDED.is_new, hidden = EXCLUDED.hidden`,
		r.WatchID, r.Link, r.Title, r.Image, r.Price, r.BidPrice, r.BinPrice, nullTime(r.EndTime),
		r.Source, r.FirstSeen, nullTime(r.LastSeen), r.IsNew, r.Hidden,
	)
	if err != nil {
		return fmt.Errorf("upserting result: %w", err)
	}
	return nil
}

func (t resultTx) DeleteResult(ctx context.Context, watchID, link string) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM results WHERE watch_id = $1 AND link = $2`, watchID, link); err != nil {
		return fmt.Errorf("deleting result: %w", err)
	}
	return nil
}

func (t resultTx) HideResult(ctx context.Context, watchID, link string) error {
	_, err := t.q.Exec(ctx,
		`UPDATE results SET hidden = TRUE, is_new = FALSE WHERE watch_id = $1 AND link = $2`, watchID, link)
	if err != nil {
		return fmt.Errorf("hiding result: %w", err)
	}
	return nil
}

func (t resultTx) RefreshWatch(ctx context.Context, watchID string, at time.Time) (int, error) {
	var n int
	err := t.q.QueryRow(ctx,
		`UPDATE watches SET
			new_count = (SELECT COUNT(*) FROM results WHERE watch_id = $1 AND is_new),
			last_updated = $2
		 WHERE id = $1
		 RETURNING new_count`,
		watchID, at).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("watch %s: %w", watchID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("updating watch metadata: %w", err)
	}
	return n, nil
}

func (t resultTx) CountVisible(ctx context.Context, watchID string) (int, error) {
	var n int
	err := t.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM results WHERE watch_id = $1 AND NOT hidden`, watchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting visible results: %w", err)
	}
	return n, nil
}

// VisibleResults returns the non-hidden results of a watch, newest first.
func (s *Store) VisibleResults(ctx context.Context, watchID string) ([]types.Result, error) {
	return queryResults(ctx, s.pool,
		`SELECT `+resultColumns+` FROM results WHERE watch_id = $1 AND NOT hidden
		 ORDER BY first_seen DESC, link`, watchID)
}

// AllResults returns every result of a watch, including hidden ones.
func (s *Store) AllResults(ctx context.Context, watchID string) ([]types.Result, error) {
	return resultTx{q: s.pool}.Results(ctx, watchID)
}

// MarkSeen clears the new flag on every result of a watch.
func (s *Store) MarkSeen(ctx context.Context, watchID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE results SET is_new = FALSE WHERE watch_id = $1`, watchID); err != nil {
			return fmt.Errorf("clearing new flags: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE watches SET new_count = 0 WHERE id = $1`, watchID)
		if err != nil {
			return fmt.Errorf("resetting new count: %w", err)
		}
		return requireAffected(tag, "watch "+watchID)
	})
}

// MarkAllSeen clears the new flag on every result of every watch.
func (s *Store) MarkAllSeen(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE results SET is_new = FALSE WHERE is_new`); err != nil {
			return fmt.Errorf("clearing new flags: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE watches SET new_count = 0`); err != nil {
			return fmt.Errorf("resetting new counts: %w", err)
		}
		return nil
	})
}

// MarkItemSeen clears the new flag on one result and recounts the watch.
func (s *Store) MarkItemSeen(ctx context.Context, watchID, link string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE results SET is_new = FALSE WHERE watch_id = $1 AND link = $2`, watchID, link)
		if err != nil {
			return fmt.Errorf("clearing new flag: %w", err)
		}
		if err := requireAffected(tag, "result "+link); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE watches SET new_count = (SELECT COUNT(*) FROM results WHERE watch_id = $1 AND is_new)
			 WHERE id = $1`, watchID)
		if err != nil {
			return fmt.Errorf("recounting new results: %w", err)
		}
		return nil
	})
}

func queryResults(ctx context.Context, q querier, sql string, args ...any) ([]types.Result, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []types.Result
	for rows.Next() {
		var (
			r                 types.Result
			endTime, lastSeen *time.Time
		)
		if err := rows.Scan(&r.WatchID, &r.Link, &r.Title, &r.Image, &r.Price, &r.BidPrice, &r.BinPrice,
			&endTime, &r.Source, &r.FirstSeen, &lastSeen, &r.IsNew, &r.Hidden); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.FirstSeen = r.FirstSeen.UTC()
		if endTime != nil {
			r.EndTime = endTime.UTC()
		}
		if lastSeen != nil {
			r.LastSeen = lastSeen.UTC()
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

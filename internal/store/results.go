// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pdiddy/figure-watch/pkg/types"
)

const resultColumns = `watch_id, link, title, image, price, bid_price, bin_price, end_time,
	source, first_seen, last_seen, is_new, hidden`

// resultTx implements reconcile.Tx.
type resultTx struct {
	q querier
}

func (t resultTx) Results(ctx context.Context, watchID string) ([]types.Result, error) {
	return queryResults(ctx, t.q, `SELECT `+resultColumns+` FROM results WHERE watch_id = ? ORDER BY first_seen, link`, watchID)
}

func (t resultTx) UpsertResult(ctx context.Context, r types.Result) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(watch_id, link) DO UPDATE SET
			title=excluded.title, image=excluded.image, price=excluded.price,
			bid_price=excluded.bid_price, bin_price=excluded.bin_price, end_time=excluded.end_time,
			source=excluded.source, first_seen=excluded.first_seen, last_seen=excluded.last_seen,
			is_new=excluded.is_new, hidden=excluded.hidden`,
		r.WatchID, r.Link, r.Title, r.Image, r.Price, r.BidPrice, r.BinPrice, formatTime(r.EndTime),
		r.Source, formatTime(r.FirstSeen), formatTime(r.LastSeen), boolInt(r.IsNew), boolInt(r.Hidden),
	)
	if err != nil {
		return fmt.Errorf("upserting result: %w", err)
	}
	return nil
}

func (t resultTx) DeleteResult(ctx context.Context, watchID, link string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM results WHERE watch_id = ? AND link = ?`, watchID, link); err != nil {
		return fmt.Errorf("deleting result: %w", err)
	}
	return nil
}

func (t resultTx) HideResult(ctx context.Context, watchID, link string) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE results SET hidden = 1, is_new = 0 WHERE watch_id = ? AND link = ?`, watchID, link)
	if err != nil {
		return fmt.Errorf("hiding result: %w", err)
	}
	return nil
}

func (t resultTx) RefreshWatch(ctx context.Context, watchID string, at time.Time) (int, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE watches SET
			new_count = (SELECT COUNT(*) FROM results WHERE watch_id = ? AND is_new = 1),
			last_updated = ?
		 WHERE id = ?`,
		watchID, formatTime(at), watchID)
	if err != nil {
		return 0, fmt.Errorf("updating watch metadata: %w", err)
	}
	if err := requireAffected(res, "watch "+watchID); err != nil {
		return 0, err
	}

	var n int
	if err := t.q.QueryRowContext(ctx, `SELECT new_count FROM watches WHERE id = ?`, watchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("reading new count: %w", err)
	}
	return n, nil
}

func (t resultTx) CountVisible(ctx context.Context, watchID string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE watch_id = ? AND hidden = 0`, watchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting visible results: %w", err)
	}
	return n, nil
}

// VisibleResults returns the non-hidden results of a watch, newest first.
func (s *Store) VisibleResults(ctx context.Context, watchID string) ([]types.Result, error) {
	return queryResults(ctx, s.db,
		`SELECT `+resultColumns+` FROM results WHERE watch_id = ? AND hidden = 0
		 ORDER BY first_seen DESC, link`, watchID)
}

// AllResults returns every result of a watch, including hidden ones.
func (s *Store) AllResults(ctx context.Context, watchID string) ([]types.Result, error) {
	return resultTx{q: s.db}.Results(ctx, watchID)
}

// MarkSeen clears the new flag on every result of a watch.
func (s *Store) MarkSeen(ctx context.Context, watchID string) error {
	return s.markSeen(ctx,
		`UPDATE results SET is_new = 0 WHERE watch_id = ?`, []any{watchID},
		`UPDATE watches SET new_count = 0 WHERE id = ?`, []any{watchID})
}

// MarkAllSeen clears the new flag on every result of every watch.
func (s *Store) MarkAllSeen(ctx context.Context) error {
	return s.markSeen(ctx,
		`UPDATE results SET is_new = 0`, nil,
		`UPDATE watches SET new_count = 0`, nil)
}

// MarkItemSeen clears the new flag on one result and recounts the watch.
func (s *Store) MarkItemSeen(ctx context.Context, watchID, link string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE results SET is_new = 0 WHERE watch_id = ? AND link = ?`, watchID, link)
	if err != nil {
		return fmt.Errorf("clearing new flag: %w", err)
	}
	if err := requireAffected(res, "result "+link); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE watches SET new_count = (SELECT COUNT(*) FROM results WHERE watch_id = ? AND is_new = 1)
		 WHERE id = ?`, watchID, watchID); err != nil {
		return fmt.Errorf("recounting new results: %w", err)
	}
	return tx.Commit()
}

func (s *Store) markSeen(ctx context.Context, resultsSQL string, resultsArgs []any, watchSQL string, watchArgs []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, resultsSQL, resultsArgs...); err != nil {
		return fmt.Errorf("clearing new flags: %w", err)
	}
	res, err := tx.ExecContext(ctx, watchSQL, watchArgs...)
	if err != nil {
		return fmt.Errorf("resetting new counts: %w", err)
	}
	if len(watchArgs) == 1 {
		if err := requireAffected(res, fmt.Sprintf("watch %v", watchArgs[0])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func queryResults(ctx context.Context, q querier, query string, args ...any) ([]types.Result, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []types.Result
	for rows.Next() {
		var (
			r                            types.Result
			image, price, bid, bin       sql.NullString
			endTime, firstSeen, lastSeen sql.NullString
			isNew, hidden                int
		)
		if err := rows.Scan(&r.WatchID, &r.Link, &r.Title, &image, &price, &bid, &bin, &endTime,
			&r.Source, &firstSeen, &lastSeen, &isNew, &hidden); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Image, r.Price, r.BidPrice, r.BinPrice = image.String, price.String, bid.String, bin.String
		r.EndTime = parseTime(endTime)
		r.FirstSeen = parseTime(firstSeen)
		r.LastSeen = parseTime(lastSeen)
		r.IsNew = isNew != 0
		r.Hidden = hidden != 0
		results = append(results, r)
	}
	return results, rows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile merges one pass of fresh candidates into a watch's
// persisted results. Vanished items are hidden for a per-family grace
// period before they are deleted, so a single failed scrape does not erase
// history or trigger re-notification when the item comes back.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// Tx is the storage contract the engine needs inside one transaction.
type Tx interface {
	// Results returns every persisted row of the watch, hidden or not.
	Results(ctx context.Context, watchID string) ([]types.Result, error)

	// UpsertResult inserts or updates the row keyed by (WatchID, Link).
	UpsertResult(ctx context.Context, r types.Result) error

	// DeleteResult removes the row keyed by (watchID, link).
	DeleteResult(ctx context.Context, watchID, link string) error

	// HideResult sets hidden and clears is_new on the row.
	HideResult(ctx context.Context, watchID, link string) error

	// RefreshWatch recomputes the watch's new-item count from its rows,
	// stamps its last-updated time, and returns the count.
	RefreshWatch(ctx context.Context, watchID string, at time.Time) (int, error)

	// CountVisible returns the number of non-hidden rows of the watch.
	CountVisible(ctx context.Context, watchID string) (int, error)
}

// Transactor runs fn inside one transaction, committing when fn returns
// nil and rolling back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Outcome summarises one Save call.
type Outcome struct {
	NewItems []types.Item
	NewCount int
	Visible  int
	Hidden   int
	Deleted  int
}

// Engine applies reconciliation plans transactionally.
type Engine struct {
	policy *Policy
	logger *slog.Logger

	// Clock returns the current time. Tests replace it.
	Clock func() time.Time

	mu    sync.Mutex
	locks map[string]*watchLock
}

// watchLock is dropped from the map once no Save holds or waits on it.
type watchLock struct {
	sync.Mutex
	refs int
}

// NewEngine creates an Engine. A nil policy uses DefaultPolicy and a nil
// logger uses slog.Default.
func NewEngine(policy *Policy, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		policy: policy,
		logger: logger,
		Clock:  time.Now,
		locks:  make(map[string]*watchLock),
	}
}

// Policy returns the engine's grace policy.
func (e *Engine) Policy() *Policy { return e.policy }

func (e *Engine) lock(watchID string) func() {
	e.mu.Lock()
	l, ok := e.locks[watchID]
	if !ok {
		l = &watchLock{}
		e.locks[watchID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, watchID)
		}
		e.mu.Unlock()
	}
}

// Save reconciles fresh against the watch's persisted rows in one
// transaction and returns the newly inserted items and the visible count.
// Calls for the same watch are serialised; different watches run in
// parallel.
func (e *Engine) Save(ctx context.Context, db Transactor, watchID string, fresh []types.Item, sourceTag string) (Outcome, error) {
	unlock := e.lock(watchID)
	defer unlock()

	now := e.Clock().UTC()
	var out Outcome

	err := db.InTx(ctx, func(tx Tx) error {
		existing, err := tx.Results(ctx, watchID)
		if err != nil {
			return fmt.Errorf("loading results: %w", err)
		}

		ch := Plan(existing, fresh, now, e.policy, sourceTag)
		for _, src := range ch.Unclassified {
			e.logger.Warn("reconcile: source has no family, deleting without grace",
				"watch", watchID, "source", src)
		}

		for _, r := range ch.Upserts {
			r.WatchID = watchID
			if err := tx.UpsertResult(ctx, r); err != nil {
				return fmt.Errorf("upserting %s: %w", r.Link, err)
			}
		}
		for _, r := range ch.Hide {
			if err := tx.HideResult(ctx, watchID, r.Link); err != nil {
				return fmt.Errorf("hiding %s: %w", r.Link, err)
			}
		}
		for _, r := range ch.Delete {
			if err := tx.DeleteResult(ctx, watchID, r.Link); err != nil {
				return fmt.Errorf("deleting %s: %w", r.Link, err)
			}
		}

		newCount, err := tx.RefreshWatch(ctx, watchID, now)
		if err != nil {
			return fmt.Errorf("refreshing watch metadata: %w", err)
		}
		visible, err := tx.CountVisible(ctx, watchID)
		if err != nil {
			return fmt.Errorf("counting visible results: %w", err)
		}

		out = Outcome{
			NewItems: ch.NewItems,
			NewCount: newCount,
			Visible:  visible,
			Hidden:   len(ch.Hide),
			Deleted:  len(ch.Delete),
		}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("saving results for watch %s: %w", watchID, err)
	}

	e.logger.Debug("reconcile: saved",
		"watch", watchID, "new", len(out.NewItems), "visible", out.Visible,
		"hidden", out.Hidden, "deleted", out.Deleted)
	return out, nil
}

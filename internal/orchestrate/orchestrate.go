// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate runs batch refreshes over watches: it searches every
// term of each watch, reconciles the merged candidates, and notifies new
// items. Watches are processed in bounded chunks with a staggered start,
// and progress is persisted so an interrupted batch resumes where it
// stopped.
package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/figure-watch/internal/adapter"
	"github.com/pdiddy/figure-watch/internal/aggregate"
	"github.com/pdiddy/figure-watch/internal/notify"
	"github.com/pdiddy/figure-watch/internal/reconcile"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// Store is the persistence the runner needs.
type Store interface {
	reconcile.Transactor
	GetWatch(ctx context.Context, id string) (types.Watch, error)
	ListWatches(ctx context.Context) ([]types.Watch, error)
	StartBatch(ctx context.Context, watchIDs []string) (string, error)
	OpenBatch(ctx context.Context) (string, []string, error)
	CompleteBatchItem(ctx context.Context, runID, watchID string) error
	FinishBatch(ctx context.Context, runID string) error
}

// Searcher runs one term across the sources.
type Searcher interface {
	SearchAll(ctx context.Context, term string, enabled, strictOverride map[string]bool, negativeFilters []string) aggregate.Output
}

// Runner executes batch runs.
type Runner struct {
	Store    Store
	Searcher Searcher
	Engine   *reconcile.Engine
	Notifier notify.Notifier
	Health   *adapter.Health
	Batch    types.BatchConfig
	Logger   *slog.Logger

	aborted atomic.Bool
}

// Report summarises one batch run.
type Report struct {
	RunID   string
	Resumed bool
	Aborted bool
	Watches []WatchReport
}

// Failed returns the number of watches whose refresh failed.
func (r Report) Failed() int {
	n := 0
	for _, w := range r.Watches {
		if w.Err != nil {
			n++
		}
	}
	return n
}

// WatchReport is the outcome for one watch.
type WatchReport struct {
	WatchID     string
	DisplayName string
	Candidates  int
	New         int
	Visible     int
	Hidden      int
	Deleted     int

	// Failures are the adapter failures across all terms.
	Failures []types.SourceFailure

	// Err is set when the watch could not be loaded or saved.
	Err error
}

// Abort asks a running batch to stop before its next chunk.
func (r *Runner) Abort() { r.aborted.Store(true) }

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run refreshes watchIDs. With no IDs it resumes the unfinished batch if
// one exists, else starts a batch over every watch; progress of such a
// batch is persisted. Explicit IDs run without progress tracking. A failure
// of one watch is logged and reported; the batch continues.
func (r *Runner) Run(ctx context.Context, watchIDs []string) (Report, error) {
	r.aborted.Store(false)
	r.Health.Reset()
	if r.Engine == nil {
		r.Engine = reconcile.NewEngine(nil, r.Logger)
	}

	var rep Report
	ids := watchIDs
	if len(ids) == 0 {
		var err error
		rep.RunID, ids, rep.Resumed, err = r.openOrStart(ctx)
		if err != nil {
			return rep, err
		}
	}

	concurrency := r.Batch.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	log := r.logger()
	log.Info("orchestrate: batch started",
		"run", rep.RunID, "watches", len(ids), "resumed", rep.Resumed, "concurrency", concurrency)

	for start := 0; start < len(ids); start += concurrency {
		if ctx.Err() != nil || r.aborted.Load() {
			rep.Aborted = true
			break
		}

		end := min(start+concurrency, len(ids))
		chunk := ids[start:end]
		reports := make([]WatchReport, len(chunk))

		p := pool.New().WithMaxGoroutines(concurrency)
		for i, id := range chunk {
			delay := time.Duration(i) * r.Batch.Stagger
			p.Go(func() {
				if delay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(delay):
					}
				}
				reports[i] = r.refresh(ctx, rep.RunID, id)
			})
		}
		p.Wait()
		rep.Watches = append(rep.Watches, reports...)
	}

	if rep.Aborted {
		log.Warn("orchestrate: batch aborted", "run", rep.RunID,
			"processed", len(rep.Watches), "remaining", len(ids)-len(rep.Watches))
		return rep, nil
	}

	if rep.RunID != "" {
		if err := r.Store.FinishBatch(ctx, rep.RunID); err != nil {
			return rep, fmt.Errorf("finishing batch: %w", err)
		}
	}
	log.Info("orchestrate: batch finished", "run", rep.RunID,
		"watches", len(rep.Watches), "failed", rep.Failed())
	return rep, nil
}

func (r *Runner) openOrStart(ctx context.Context) (runID string, ids []string, resumed bool, err error) {
	runID, ids, err = r.Store.OpenBatch(ctx)
	if err != nil {
		return "", nil, false, fmt.Errorf("checking for unfinished batch: %w", err)
	}
	if runID != "" && len(ids) > 0 {
		return runID, ids, true, nil
	}

	watches, err := r.Store.ListWatches(ctx)
	if err != nil {
		return "", nil, false, fmt.Errorf("listing watches: %w", err)
	}
	ids = make([]string, len(watches))
	for i, w := range watches {
		ids[i] = w.ID
	}
	runID, err = r.Store.StartBatch(ctx, ids)
	if err != nil {
		return "", nil, false, fmt.Errorf("starting batch: %w", err)
	}
	return runID, ids, false, nil
}

// refresh processes one watch. Errors are captured in the report.
func (r *Runner) refresh(ctx context.Context, runID, watchID string) WatchReport {
	log := r.logger().With("watch", watchID)
	rep := WatchReport{WatchID: watchID}

	defer func() {
		if runID == "" || ctx.Err() != nil {
			return
		}
		if err := r.Store.CompleteBatchItem(ctx, runID, watchID); err != nil {
			log.Error("orchestrate: recording progress", "error", err)
		}
	}()

	w, err := r.Store.GetWatch(ctx, watchID)
	if err != nil {
		rep.Err = fmt.Errorf("loading watch: %w", err)
		log.Error("orchestrate: watch failed", "error", rep.Err)
		return rep
	}
	rep.DisplayName = w.DisplayName

	var candidates []types.Item
	for _, term := range w.SearchTerms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		out := r.Searcher.SearchAll(ctx, term, w.EnabledSources(), w.StrictOverride(), w.NegativeFilters)
		candidates = append(candidates, out.Items...)
		rep.Failures = append(rep.Failures, out.Failures...)
	}
	candidates = aggregate.Dedupe(candidates)
	rep.Candidates = len(candidates)

	// A cancelled search returns partial candidates; saving them would
	// hide every item that was not fetched.
	if err := ctx.Err(); err != nil {
		rep.Err = fmt.Errorf("refresh interrupted: %w", err)
		return rep
	}

	out, err := r.Engine.Save(ctx, r.Store, w.ID, candidates, "")
	if err != nil {
		rep.Err = err
		log.Error("orchestrate: watch failed", "error", err)
		return rep
	}
	rep.New = len(out.NewItems)
	rep.Visible = out.Visible
	rep.Hidden = out.Hidden
	rep.Deleted = out.Deleted

	if r.Notifier != nil && len(out.NewItems) > 0 {
		if err := r.Notifier.Notify(ctx, w, out.NewItems); err != nil {
			log.Warn("orchestrate: notification failed", "error", err)
		}
	}

	log.Info("orchestrate: watch refreshed", "name", w.DisplayName,
		"candidates", rep.Candidates, "new", rep.New, "visible", rep.Visible,
		"failed_sources", len(rep.Failures))
	return rep
}

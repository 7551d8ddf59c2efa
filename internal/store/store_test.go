// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/figure-watch/internal/reconcile"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "figure-watch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleWatch() types.Watch {
	return types.Watch{
		DisplayName:     "Miku 1/7",
		SearchTerms:     []string{"初音ミク 1/7", "ミク|MIKU"},
		NegativeFilters: []string{"海外版"},
		Sources:         map[string]bool{"Yahoo": true, "mercari": false},
		Strict:          true,
	}
}

func createWatch(t *testing.T, s *Store) types.Watch {
	t.Helper()
	w, err := s.CreateWatch(context.Background(), sampleWatch())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func testEngine(now time.Time) *reconcile.Engine {
	e := reconcile.NewEngine(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Clock = func() time.Time { return now }
	return e
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- schema ---

func TestOpenCreatesSchema(t *testing.T) {
	s := testSetup(t)

	for _, table := range []string{"watches", "results", "batch_runs", "batch_pending"} {
		var name string
		err := s.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	s2.Close()
}

// --- watches ---

func TestCreateAndGetWatch(t *testing.T) {
	s := testSetup(t)
	w := createWatch(t, s)

	if w.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetWatch(context.Background(), w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Miku 1/7" {
		t.Errorf("display name = %q", got.DisplayName)
	}
	if len(got.SearchTerms) != 2 || got.SearchTerms[1] != "ミク|MIKU" {
		t.Errorf("search terms = %v", got.SearchTerms)
	}
	if !got.Sources["yahoo"] || got.Sources["mercari"] {
		t.Errorf("sources = %v, want lowercased keys", got.Sources)
	}
	if !got.Strict {
		t.Error("strict not persisted")
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestCreateWatchValidates(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	if _, err := s.CreateWatch(ctx, types.Watch{SearchTerms: []string{"x"}}); err == nil {
		t.Error("expected error for missing display name")
	}
	if _, err := s.CreateWatch(ctx, types.Watch{DisplayName: "x", SearchTerms: []string{" "}}); err == nil {
		t.Error("expected error for blank search terms")
	}
}

func TestGetWatchNotFound(t *testing.T) {
	s := testSetup(t)
	_, err := s.GetWatch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListWatchesOrder(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	for i, name := range []string{"b", "a", "c"} {
		w := sampleWatch()
		w.DisplayName = name
		w.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		if _, err := s.CreateWatch(ctx, w); err != nil {
			t.Fatal(err)
		}
	}

	watches, err := s.ListWatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, w := range watches {
		names = append(names, w.DisplayName)
	}
	if strings.Join(names, ",") != "b,a,c" {
		t.Errorf("order = %v, want creation order", names)
	}
}

func TestUpdateWatch(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w := createWatch(t, s)

	w.DisplayName = "Renamed"
	w.SearchTerms = []string{"セイバー"}
	w.Strict = false
	if err := s.UpdateWatch(ctx, w); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetWatch(ctx, w.ID)
	if got.DisplayName != "Renamed" || got.SearchTerms[0] != "セイバー" || got.Strict {
		t.Errorf("update not applied: %+v", got)
	}

	w.ID = "missing"
	if err := s.UpdateWatch(ctx, w); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteWatchCascades(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w := createWatch(t, s)

	_, err := testEngine(t0).Save(ctx, s, w.ID, []types.Item{{Title: "a", Link: "L1", Source: "yahoo"}}, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteWatch(ctx, w.ID); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("results remaining = %d, want 0", n)
	}
	if err := s.DeleteWatch(ctx, w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

// --- reconciliation against SQLite ---

func TestSaveInsertsAndCounts(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w := createWatch(t, s)

	fresh := []types.Item{
		{Title: "初音ミク 1/7", Link: "https://y.example/1", Source: "yahoo", Price: "¥12,000"},
		{Title: "初音ミク 1/8", Link: "https://y.example/2", Source: "yahoo", EndTime: t0.Add(24 * time.Hour)},
	}
	out, err := testEngine(t0).Save(ctx, s, w.ID, fresh, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.NewItems) != 2 || out.Visible != 2 || out.NewCount != 2 {
		t.Errorf("outcome = %+v", out)
	}

	got, _ := s.GetWatch(ctx, w.ID)
	if got.NewCount != 2 {
		t.Errorf("new_count = %d, want 2", got.NewCount)
	}
	if !got.LastUpdated.Equal(t0) {
		t.Errorf("last_updated = %v, want %v", got.LastUpdated, t0)
	}

	results, err := s.VisibleResults(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("visible = %d, want 2", len(results))
	}
	for _, r := range results {
		if !r.IsNew || r.Hidden || !r.FirstSeen.Equal(t0) {
			t.Errorf("unexpected state %+v", r)
		}
		if r.Link == "https://y.example/1" && r.Price != "¥12,000" {
			t.Errorf("price = %q", r.Price)
		}
		if r.Link == "https://y.example/2" && !r.EndTime.Equal(t0.Add(24*time.Hour)) {
			t.Errorf("end time = %v", r.EndTime)
		}
	}
}

func TestSaveHidesThenDeletes(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w := createWatch(t, s)

	if _, err := testEngine(t0).Save(ctx, s, w.ID, []types.Item{{Title: "a", Link: "L1", Source: "Yahoo"}}, ""); err != nil {
		t.Fatal(err)
	}

	out, err := testEngine(t0.Add(time.Minute)).Save(ctx, s, w.ID, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Hidden != 1 || out.Visible != 0 {
		t.Errorf("outcome = %+v, want one hidden", out)
	}
	all, _ := s.AllResults(ctx, w.ID)
	if len(all) != 1 || !all[0].Hidden || all[0].IsNew {
		t.Fatalf("after hide: %+v", all)
	}
	got, _ := s.GetWatch(ctx, w.ID)
	if got.NewCount != 0 {
		t.Errorf("new_count = %d, want 0 after hide", got.NewCount)
	}

	out, err = testEngine(t0.Add(73*time.Hour)).Save(ctx, s, w.ID, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", out.Deleted)
	}
	all, _ = s.AllResults(ctx, w.ID)
	if len(all) != 0 {
		t.Errorf("rows remaining = %d", len(all))
	}
}

func TestSaveUnknownWatchRollsBack(t *testing.T) {
	s := testSetup(t)
	_, err := testEngine(t0).Save(context.Background(), s, "missing",
		[]types.Item{{Title: "a", Link: "L1", Source: "yahoo"}}, "")
	if err == nil {
		t.Fatal("expected error for unknown watch")
	}

	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n)
	if n != 0 {
		t.Errorf("results = %d, want 0 after rollback", n)
	}
}

func TestSaveConcurrentWatches(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	e := testEngine(t0)

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, createWatch(t, s).ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = e.Save(ctx, s, id, []types.Item{{Title: "a", Link: "L1", Source: "yahoo"}}, "")
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("watch %d: %v", i, err)
		}
	}
	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n)
	if n != len(ids) {
		t.Errorf("results = %d, want %d", n, len(ids))
	}
}

// --- seen flags ---

func seed(t *testing.T, s *Store, id string, links ...string) {
	t.Helper()
	var fresh []types.Item
	for _, l := range links {
		fresh = append(fresh, types.Item{Title: l, Link: l, Source: "yahoo"})
	}
	if _, err := testEngine(t0).Save(context.Background(), s, id, fresh, ""); err != nil {
		t.Fatal(err)
	}
}

func TestMarkSeen(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w1, w2 := createWatch(t, s), createWatch(t, s)
	seed(t, s, w1.ID, "A", "B")
	seed(t, s, w2.ID, "C")

	if err := s.MarkSeen(ctx, w1.ID); err != nil {
		t.Fatal(err)
	}
	got1, _ := s.GetWatch(ctx, w1.ID)
	got2, _ := s.GetWatch(ctx, w2.ID)
	if got1.NewCount != 0 || got2.NewCount != 1 {
		t.Errorf("counts = %d, %d; want 0, 1", got1.NewCount, got2.NewCount)
	}

	if err := s.MarkSeen(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkAllSeen(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w1, w2 := createWatch(t, s), createWatch(t, s)
	seed(t, s, w1.ID, "A")
	seed(t, s, w2.ID, "B")

	if err := s.MarkAllSeen(ctx); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{w1.ID, w2.ID} {
		results, _ := s.VisibleResults(ctx, id)
		for _, r := range results {
			if r.IsNew {
				t.Errorf("%s still new", r.Link)
			}
		}
		w, _ := s.GetWatch(ctx, id)
		if w.NewCount != 0 {
			t.Errorf("new_count = %d", w.NewCount)
		}
	}
}

func TestMarkItemSeen(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	w := createWatch(t, s)
	seed(t, s, w.ID, "A", "B")

	if err := s.MarkItemSeen(ctx, w.ID, "A"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetWatch(ctx, w.ID)
	if got.NewCount != 1 {
		t.Errorf("new_count = %d, want 1", got.NewCount)
	}
	if err := s.MarkItemSeen(ctx, w.ID, "Z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// --- batch progress ---

func TestBatchProgress(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	runID, pending, err := s.OpenBatch(ctx)
	if err != nil || runID != "" || pending != nil {
		t.Fatalf("OpenBatch on empty db = %q, %v, %v", runID, pending, err)
	}

	runID, err = s.StartBatch(ctx, []string{"w3", "w1", "w2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteBatchItem(ctx, runID, "w1"); err != nil {
		t.Fatal(err)
	}

	open, pending, err := s.OpenBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if open != runID {
		t.Errorf("open run = %q, want %q", open, runID)
	}
	if strings.Join(pending, ",") != "w3,w2" {
		t.Errorf("pending = %v, want [w3 w2]", pending)
	}

	if err := s.FinishBatch(ctx, runID); err != nil {
		t.Fatal(err)
	}
	open, _, _ = s.OpenBatch(ctx)
	if open != "" {
		t.Errorf("run still open after finish: %q", open)
	}
}

func TestStartBatchClosesPrevious(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	first, _ := s.StartBatch(ctx, []string{"a"})
	second, err := s.StartBatch(ctx, []string{"b"})
	if err != nil {
		t.Fatal(err)
	}

	open, pending, _ := s.OpenBatch(ctx)
	if open != second || open == first {
		t.Errorf("open = %q, want %q", open, second)
	}
	if len(pending) != 1 || pending[0] != "b" {
		t.Errorf("pending = %v", pending)
	}
}

// --- export ---

func TestExportImportRoundTrip(t *testing.T) {
	s := testSetup(t)
	w := createWatch(t, s)

	var buf bytes.Buffer
	if err := ExportYAML(&buf, []types.Watch{w}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), w.ID) {
		t.Error("export must not contain watch IDs")
	}

	watches, err := DecodeWatches(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(watches) != 1 || watches[0].DisplayName != w.DisplayName || len(watches[0].SearchTerms) != 2 {
		t.Errorf("decoded = %+v", watches)
	}
}

func TestDecodeWatchesJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, []types.Watch{sampleWatch()}); err != nil {
		t.Fatal(err)
	}
	watches, err := DecodeWatches(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(watches) != 1 || !watches[0].Strict {
		t.Errorf("decoded = %+v", watches)
	}
}

func TestDecodeWatchesInvalid(t *testing.T) {
	_, err := DecodeWatches(strings.NewReader("- display_name: x\n  search_terms: []\n"))
	if err == nil || !strings.Contains(err.Error(), "entry 1") {
		t.Errorf("err = %v, want entry 1 validation error", err)
	}

	watches, err := DecodeWatches(strings.NewReader("  \n"))
	if err != nil || watches != nil {
		t.Errorf("empty input = %v, %v", watches, err)
	}
}

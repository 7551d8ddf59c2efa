// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/figure-watch/internal/adapter"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// --- mock adapter ---

type mockAdapter struct {
	name  string
	items []types.Item
	err   error
	delay time.Duration
	panic bool

	mu   sync.Mutex
	reqs []adapter.Request
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Search(ctx context.Context, req adapter.Request) ([]types.Item, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if m.panic {
		panic("selector exploded")
	}
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	out := make([]types.Item, len(m.items))
	copy(out, m.items)
	return out, m.err
}

func (m *mockAdapter) lastRequest(t *testing.T) adapter.Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.reqs)
	return m.reqs[len(m.reqs)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAgg(adapters []adapter.Adapter, opts Options) *Aggregator {
	opts.Logger = quietLogger()
	return New(adapters, opts)
}

// --- SearchAll ---

func TestSearchAllSeparatesFailures(t *testing.T) {
	taobao := &mockAdapter{name: "Taobao", err: fmt.Errorf("Cookie Error: %w", adapter.ErrAuthRequired)}
	yahoo := &mockAdapter{name: "Yahoo", items: []types.Item{
		{Title: "初音ミク フィギュア", Link: "https://y.example/1"},
		{Title: "初音ミク ねんどろいど", Link: "https://y.example/2"},
	}}

	agg := newAgg([]adapter.Adapter{taobao, yahoo}, Options{})
	out := agg.SearchAll(context.Background(), "初音ミク", nil, nil, nil)

	require.Len(t, out.Items, 2)
	for _, it := range out.Items {
		assert.Equal(t, "yahoo", it.Source)
		assert.NotEmpty(t, it.Link)
	}
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "taobao", out.Failures[0].Source)
	assert.Equal(t, types.FailureUnavailable, out.Failures[0].Kind)
	assert.Contains(t, out.Failures[0].Reason, "Cookie Error")
}

func TestSearchAllFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		adapter *mockAdapter
		want    types.FailureKind
	}{
		{"plain error", &mockAdapter{name: "a", err: errors.New("HTTP 500")}, types.FailureError},
		{"nil response", &mockAdapter{name: "a"}, types.FailureUnavailable},
		{"panic", &mockAdapter{name: "a", panic: true}, types.FailurePanic},
		{"timeout", &mockAdapter{name: "a", delay: time.Second, items: []types.Item{{Link: "L"}}}, types.FailureTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newAgg([]adapter.Adapter{nilItems(tt.adapter)}, Options{Timeout: 20 * time.Millisecond})
			out := agg.SearchAll(context.Background(), "x", nil, nil, nil)
			assert.Empty(t, out.Items)
			require.Len(t, out.Failures, 1)
			assert.Equal(t, tt.want, out.Failures[0].Kind)
		})
	}
}

func TestSearchAllAbandonsAdapterIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stuck := adapter.New("mercari", func(context.Context, adapter.Request) ([]types.Item, error) {
		<-release
		return nil, nil
	})
	yahoo := &mockAdapter{name: "yahoo", items: []types.Item{{Title: "ミク", Link: "Y1"}}}

	health := adapter.NewHealth(1)
	agg := newAgg([]adapter.Adapter{stuck, yahoo}, Options{Timeout: 50 * time.Millisecond, Health: health})

	start := time.Now()
	out := agg.SearchAll(context.Background(), "ミク", nil, nil, nil)
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, out.Items, 1)
	assert.Equal(t, "Y1", out.Items[0].Link)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "mercari", out.Failures[0].Source)
	assert.Equal(t, types.FailureTimeout, out.Failures[0].Kind)
	assert.True(t, health.Disabled("mercari"), "timeouts count toward disabling the source")
}

// nilItems wraps a mock so that an empty item list is returned as nil,
// modelling an adapter that produced no response at all.
func nilItems(m *mockAdapter) adapter.Adapter {
	return adapter.New(m.name, func(ctx context.Context, req adapter.Request) ([]types.Item, error) {
		items, err := m.Search(ctx, req)
		if len(items) == 0 {
			items = nil
		}
		return items, err
	})
}

func TestSearchAllEmptySuccessIsNotFailure(t *testing.T) {
	agg := newAgg([]adapter.Adapter{&mockAdapter{name: "a"}}, Options{})
	out := agg.SearchAll(context.Background(), "x", nil, nil, nil)
	assert.Empty(t, out.Items)
	assert.Empty(t, out.Failures)
}

func TestSearchAllRunsConcurrently(t *testing.T) {
	var adapters []adapter.Adapter
	for i := 0; i < 5; i++ {
		adapters = append(adapters, &mockAdapter{
			name:  fmt.Sprintf("s%d", i),
			delay: 100 * time.Millisecond,
			items: []types.Item{{Title: "t", Link: fmt.Sprintf("L%d", i)}},
		})
	}
	agg := newAgg(adapters, Options{})

	start := time.Now()
	out := agg.SearchAll(context.Background(), "t", nil, nil, nil)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	require.Len(t, out.Items, 5)
	for i, it := range out.Items {
		assert.Equal(t, fmt.Sprintf("L%d", i), it.Link, "adapter order is preserved")
	}
}

func TestSearchAllEnabledSources(t *testing.T) {
	yahoo := &mockAdapter{name: "yahoo", items: []types.Item{{Title: "t", Link: "Y"}}}
	mercari := &mockAdapter{name: "mercari", items: []types.Item{{Title: "t", Link: "M"}}}
	agg := newAgg([]adapter.Adapter{yahoo, mercari}, Options{})

	out := agg.SearchAll(context.Background(), "t", map[string]bool{"Mercari": true, "yahoo": false}, nil, nil)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "M", out.Items[0].Link)
	assert.Empty(t, yahoo.reqs)
}

func TestSearchAllMandatoryQuotedTerms(t *testing.T) {
	a := &mockAdapter{name: "a", items: []types.Item{
		{Title: "Exact Phrase figure", Link: "1"},
		{Title: "Phrase Exact figure", Link: "2"},
		{Title: "exact phrase FIGURE 1/7", Link: "3"},
	}}
	agg := newAgg([]adapter.Adapter{a}, Options{})

	out := agg.SearchAll(context.Background(), `"Exact Phrase" "1/7"`, nil, nil, nil)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "3", out.Items[0].Link)
}

func TestSearchAllNegativeFilters(t *testing.T) {
	a := &mockAdapter{name: "a", items: []types.Item{
		{Title: "初音ミク 海外版", Link: "1"},
		{Title: "初音ミク 正規品", Link: "2"},
	}}
	agg := newAgg([]adapter.Adapter{a}, Options{})

	out := agg.SearchAll(context.Background(), "初音ミク", nil, nil, []string{"海外版", " "})
	require.Len(t, out.Items, 1)
	assert.Equal(t, "2", out.Items[0].Link)
	assert.Equal(t, []string{"海外版", " "}, a.lastRequest(t).Filters, "filters are passed to the adapter")
}

func TestSearchAllStrictness(t *testing.T) {
	tests := []struct {
		name     string
		global   map[string]bool
		override map[string]bool
		term     string
		want     bool
	}{
		{"both strict", map[string]bool{"a": true}, map[string]bool{"a": true}, "x", true},
		{"global loose wins", map[string]bool{"a": false}, map[string]bool{"a": true}, "x", false},
		{"override loose wins", map[string]bool{"a": true}, map[string]bool{"a": false}, "x", false},
		{"missing counts as strict", nil, nil, "x", true},
		{"quoted forces strict", map[string]bool{"a": false}, nil, `"x" y`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAdapter{name: "A", items: []types.Item{}}
			agg := newAgg([]adapter.Adapter{a}, Options{GlobalStrict: tt.global})
			agg.SearchAll(context.Background(), tt.term, nil, tt.override, nil)
			assert.Equal(t, tt.want, a.lastRequest(t).Strict)
		})
	}
}

func TestSearchAllHealthDisablesSource(t *testing.T) {
	slow := &mockAdapter{name: "slow", delay: time.Second}
	health := adapter.NewHealth(2)
	agg := newAgg([]adapter.Adapter{slow}, Options{Timeout: 10 * time.Millisecond, Health: health})

	for i := 0; i < 2; i++ {
		out := agg.SearchAll(context.Background(), "x", nil, nil, nil)
		require.Len(t, out.Failures, 1)
		assert.Equal(t, types.FailureTimeout, out.Failures[0].Kind)
	}

	out := agg.SearchAll(context.Background(), "x", nil, nil, nil)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, types.FailureDisabled, out.Failures[0].Kind)
	assert.Len(t, slow.reqs, 2, "disabled source is not called")

	agg.Health().Reset()
	out = agg.SearchAll(context.Background(), "x", nil, nil, nil)
	assert.Equal(t, types.FailureTimeout, out.Failures[0].Kind)
}

// --- helpers ---

func TestResolveStrictness(t *testing.T) {
	got := ResolveStrictness(
		map[string]bool{"Yahoo": false, "mercari": true},
		map[string]bool{"mercari": false, "surugaya": true},
		[]string{"yahoo", "mercari", "surugaya", "rakuma"},
	)
	assert.Equal(t, map[string]bool{
		"yahoo":    false,
		"mercari":  false,
		"surugaya": true,
		"rakuma":   true,
	}, got)
}

func TestQuotedTerms(t *testing.T) {
	assert.Equal(t, []string{"Exact Phrase", "1/7"}, QuotedTerms(`"Exact Phrase" miku "1/7"`))
	assert.Empty(t, QuotedTerms(`miku "" "  "`))
	assert.Empty(t, QuotedTerms(`unbalanced "quote`))
	assert.Equal(t, []string{"1/7"}, QuotedTerms(`miku -"bootleg" "-junk" "1/7"`))
}

func TestSearchAllNegatedQuoteIsNotMandatory(t *testing.T) {
	a := &mockAdapter{name: "a", items: []types.Item{
		{Title: "miku figure", Link: "1"},
	}}
	agg := newAgg([]adapter.Adapter{a}, Options{})

	out := agg.SearchAll(context.Background(), `miku -"bootleg"`, nil, nil, nil)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "1", out.Items[0].Link)
}

func TestDedupe(t *testing.T) {
	items := []types.Item{
		{Title: "a", Link: "L1", Source: "yahoo"},
		{Title: "b", Link: "L2"},
		{Title: "a again", Link: "L1", Source: "mercari"},
		{Title: "no link"},
	}
	got := Dedupe(items)
	require.Len(t, got, 2)
	assert.Equal(t, "yahoo", got[0].Source)
	assert.Equal(t, "L2", got[1].Link)
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(Output{
		Items:    []types.Item{{Title: strings.Repeat("ミ", 60), Price: "¥1,000", Source: "yahoo", Link: "L1"}},
		Failures: []types.SourceFailure{{Source: "taobao", Kind: types.FailureUnavailable, Reason: "cookie"}},
	}, &buf)

	out := buf.String()
	assert.Contains(t, out, strings.Repeat("ミ", 47)+"...")
	assert.Contains(t, out, "1 results")
	assert.Contains(t, out, "warning: taobao unavailable: cookie")

	buf.Reset()
	FormatTable(Output{}, &buf)
	assert.Contains(t, buf.String(), "No results found.")
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(Output{Items: []types.Item{{Title: "t", Link: "L", Source: "yahoo"}}}, &buf))
	assert.Contains(t, buf.String(), `"link": "L"`)
	assert.NotContains(t, buf.String(), "failures")
}

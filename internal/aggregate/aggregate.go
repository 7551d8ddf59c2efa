// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans one search term out to the enabled source adapters
// concurrently, collects every outcome, and returns a merged, filtered item
// list together with per-source failures. A failing adapter never fails the
// batch: its error is reported as a types.SourceFailure.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/figure-watch/internal/adapter"
	"github.com/pdiddy/figure-watch/internal/query"
	"github.com/pdiddy/figure-watch/pkg/types"
)

const defaultTimeout = 60 * time.Second

// Options configures an Aggregator.
type Options struct {
	// GlobalStrict is the admin-level per-source strictness.
	GlobalStrict map[string]bool

	// Timeout bounds each adapter call (default 60s).
	Timeout time.Duration

	// Health tracks consecutive timeouts; nil disables tracking.
	Health *adapter.Health

	// Matcher is used for the mandatory quoted-term and negative filters.
	Matcher *query.Matcher

	Logger *slog.Logger
}

// Aggregator runs searches across a fixed set of adapters.
type Aggregator struct {
	adapters []adapter.Adapter
	strict   map[string]bool
	timeout  time.Duration
	health   *adapter.Health
	matcher  *query.Matcher
	logger   *slog.Logger
}

// Output holds the merged items and the sources that failed.
type Output struct {
	Items    []types.Item          `json:"items"`
	Failures []types.SourceFailure `json:"failures,omitempty"`
}

// New creates an Aggregator over adapters.
func New(adapters []adapter.Adapter, opts Options) *Aggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Matcher == nil {
		opts.Matcher = query.DefaultMatcher
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Aggregator{
		adapters: adapters,
		strict:   normalizeKeys(opts.GlobalStrict),
		timeout:  opts.Timeout,
		health:   opts.Health,
		matcher:  opts.Matcher,
		logger:   opts.Logger,
	}
}

// Sources returns the normalized names of all adapters, in order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		names[i] = types.SourceKey(ad.Name())
	}
	return names
}

// Health returns the health tracker shared by every search.
func (a *Aggregator) Health() *adapter.Health { return a.health }

type sourceResult struct {
	items   []types.Item
	failure *types.SourceFailure
}

// SearchAll searches term on every enabled source. enabled == nil enables
// all sources. Strictness per source is the logical AND of the global
// setting and strictOverride; quoted terms in the query force strict
// evaluation. After merging, items must contain every double-quoted
// substring of the raw term and none of negativeFilters.
func (a *Aggregator) SearchAll(ctx context.Context, term string, enabled, strictOverride map[string]bool, negativeFilters []string) Output {
	mandatory := QuotedTerms(term)
	hasQuoted := query.HasQuotedTerms(query.Parse(term))
	strict := ResolveStrictness(a.strict, strictOverride, a.Sources())
	enabled = normalizeKeys(enabled)

	results := make([]sourceResult, len(a.adapters))
	var wg sync.WaitGroup

	for i, ad := range a.adapters {
		name := types.SourceKey(ad.Name())
		if enabled != nil && !enabled[name] {
			continue
		}
		if a.health.Disabled(name) {
			results[i].failure = &types.SourceFailure{
				Source: name,
				Kind:   types.FailureDisabled,
				Reason: "disabled after repeated timeouts",
			}
			continue
		}

		req := adapter.Request{
			Term:    term,
			Strict:  strict[name] || hasQuoted,
			Filters: negativeFilters,
		}
		wg.Add(1)
		go func(i int, ad adapter.Adapter) {
			defer wg.Done()
			results[i] = a.run(ctx, ad, req)
		}(i, ad)
	}
	wg.Wait()

	var out Output
	for _, r := range results {
		if r.failure != nil {
			a.logger.Warn("aggregate: source failed",
				"source", r.failure.Source, "kind", r.failure.Kind, "reason", r.failure.Reason)
			out.Failures = append(out.Failures, *r.failure)
			continue
		}
		out.Items = append(out.Items, r.items...)
	}

	out.Items = a.filter(out.Items, mandatory, negativeFilters)
	return out
}

type reply struct {
	items []types.Item
	err   error
	panic string
}

// run calls one adapter under the per-adapter timeout and converts every
// kind of failure, including panics, into a SourceFailure. The adapter runs
// in its own goroutine, so one that ignores its context is abandoned at the
// deadline instead of holding up the other sources.
func (a *Aggregator) run(ctx context.Context, ad adapter.Adapter, req adapter.Request) sourceResult {
	name := types.SourceKey(ad.Name())
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		var r reply
		defer func() {
			if p := recover(); p != nil {
				r = reply{panic: fmt.Sprint(p)}
			}
			done <- r
		}()
		r.items, r.err = ad.Search(runCtx, req)
	}()

	var r reply
	select {
	case r = <-done:
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return a.timedOut(name, fmt.Sprintf("no response within %s", a.timeout))
		}
		return failed(name, types.FailureError, runCtx.Err().Error())
	}

	switch {
	case r.panic != "":
		return failed(name, types.FailurePanic, r.panic)
	case r.err == nil && r.items == nil:
		return failed(name, types.FailureUnavailable, "adapter returned no response")
	case r.err == nil:
		a.health.RecordSuccess(name)
		for i := range r.items {
			if r.items[i].Source == "" {
				r.items[i].Source = name
			}
		}
		return sourceResult{items: r.items}
	case errors.Is(r.err, adapter.ErrAuthRequired):
		return failed(name, types.FailureUnavailable, r.err.Error())
	case errors.Is(r.err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return a.timedOut(name, r.err.Error())
	default:
		return failed(name, types.FailureError, r.err.Error())
	}
}

func (a *Aggregator) timedOut(name, reason string) sourceResult {
	if a.health.RecordTimeout(name) {
		a.logger.Warn("aggregate: source disabled for this run", "source", name)
	}
	return failed(name, types.FailureTimeout, reason)
}

func failed(name string, kind types.FailureKind, reason string) sourceResult {
	return sourceResult{failure: &types.SourceFailure{Source: name, Kind: kind, Reason: reason}}
}

func (a *Aggregator) filter(items []types.Item, mandatory, negative []string) []types.Item {
	out := make([]types.Item, 0, len(items))
	for _, it := range items {
		if !a.containsAll(it.Title, mandatory) || a.containsAny(it.Title, negative) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (a *Aggregator) containsAll(title string, terms []string) bool {
	for _, t := range terms {
		if !a.matcher.ContainsText(title, t) {
			return false
		}
	}
	return true
}

func (a *Aggregator) containsAny(title string, terms []string) bool {
	for _, t := range terms {
		if strings.TrimSpace(t) != "" && a.matcher.ContainsText(title, t) {
			return true
		}
	}
	return false
}

var quoted = regexp.MustCompile(`"([^"]+)"`)

// QuotedTerms extracts the double-quoted substrings of a raw query. Unlike
// query.Parse it keeps multi-word phrases intact. Negated quotes, -"x" or
// "-x", are exclusions and are not returned.
func QuotedTerms(raw string) []string {
	var terms []string
	for _, m := range quoted.FindAllStringSubmatchIndex(raw, -1) {
		if m[0] > 0 && raw[m[0]-1] == '-' {
			continue
		}
		t := strings.TrimSpace(raw[m[2]:m[3]])
		if t == "" || strings.HasPrefix(t, "-") {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// ResolveStrictness combines the global and override strictness maps per
// source with logical AND: either level can relax a source to loose, and a
// source missing from a map counts as strict at that level.
func ResolveStrictness(global, override map[string]bool, sources []string) map[string]bool {
	global = normalizeKeys(global)
	override = normalizeKeys(override)
	resolved := make(map[string]bool, len(sources))
	for _, s := range sources {
		key := types.SourceKey(s)
		resolved[key] = lookup(global, key) && lookup(override, key)
	}
	return resolved
}

func lookup(m map[string]bool, key string) bool {
	v, ok := m[key]
	return !ok || v
}

func normalizeKeys(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[types.SourceKey(k)] = v
	}
	return out
}

// Dedupe removes items sharing a link, keeping the first occurrence.
// Items without a link cannot be persisted and are dropped.
func Dedupe(items []types.Item) []types.Item {
	seen := make(map[string]bool, len(items))
	out := make([]types.Item, 0, len(items))
	for _, it := range items {
		if it.Link == "" || seen[it.Link] {
			continue
		}
		seen[it.Link] = true
		out = append(out, it)
	}
	return out
}

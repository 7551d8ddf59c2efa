// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package adapter defines the contract between the aggregator and the
// marketplace source adapters, plus reusable building blocks: ordered
// fallback chains, an HTML listing strategy, and per-batch health tracking.
//
// An adapter call has two outcomes. Items with a nil error is success (an
// empty slice means the site found nothing). A non-nil error is a failure
// of that source only; ErrAuthRequired marks failures caused by missing
// credentials so they can be surfaced to the operator.
package adapter

import (
	"context"
	"errors"

	"github.com/pdiddy/figure-watch/pkg/types"
)

var (
	// ErrAuthRequired reports that a source needs credentials (cookies)
	// that are not configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrNoResults reports that no strategy in a chain produced items.
	ErrNoResults = errors.New("no results")
)

// Request is one search issued to an adapter.
type Request struct {
	// Term is the raw query expression.
	Term string

	// Strict requests full boolean-query enforcement on titles.
	Strict bool

	// Filters are negative filter strings; matching titles are dropped.
	Filters []string
}

// Adapter searches one marketplace.
type Adapter interface {
	Name() string
	Search(ctx context.Context, req Request) ([]types.Item, error)
}

// SearchFunc adapts a plain function to the Adapter interface.
type SearchFunc func(ctx context.Context, req Request) ([]types.Item, error)

type funcAdapter struct {
	name string
	fn   SearchFunc
}

// New returns an Adapter named name that delegates to fn.
func New(name string, fn SearchFunc) Adapter {
	return &funcAdapter{name: name, fn: fn}
}

func (a *funcAdapter) Name() string { return a.name }

func (a *funcAdapter) Search(ctx context.Context, req Request) ([]types.Item, error) {
	return a.fn(ctx, req)
}

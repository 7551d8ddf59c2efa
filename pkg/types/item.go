// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the figure-watch pipeline:
// candidate items produced by source adapters, persisted results owned by
// the reconciliation engine, watches, and configuration.
package types

import (
	"strings"
	"time"
)

// Item is a candidate listing returned by a source adapter for one search
// pass. Link is the natural key within a source.
type Item struct {
	// Title is the listing title as shown by the marketplace.
	Title string `json:"title" yaml:"title"`

	// Link is the listing URL.
	Link string `json:"link" yaml:"link"`

	// Image is the thumbnail URL, if any.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Price is the display price string (currency formatting varies by site).
	Price string `json:"price,omitempty" yaml:"price,omitempty"`

	// BidPrice is the current bid for auction-style listings.
	BidPrice string `json:"bid_price,omitempty" yaml:"bid_price,omitempty"`

	// BinPrice is the buy-it-now price for auction-style listings.
	BinPrice string `json:"bin_price,omitempty" yaml:"bin_price,omitempty"`

	// EndTime is the auction end time. Zero when not applicable.
	EndTime time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`

	// Source identifies the adapter that produced the item (e.g. "yahoo", "mercari").
	Source string `json:"source" yaml:"source"`
}

// TitleKey returns the trimmed title used for identity fallback when a
// source mints a new link for the same listing.
func (it Item) TitleKey() string {
	return strings.TrimSpace(it.Title)
}

// SourceKey returns the case-normalized source identifier.
func (it Item) SourceKey() string {
	return SourceKey(it.Source)
}

// SourceKey normalizes a source identifier. Source names are compared
// case-insensitively everywhere because config map keys are lowercased.
func SourceKey(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

// Result is a persisted item for one watch, keyed by (WatchID, Link).
type Result struct {
	Item `yaml:",inline"`

	// WatchID is the owning watch.
	WatchID string `json:"watch_id" yaml:"watch_id"`

	// FirstSeen is when the item was first recorded. Immutable.
	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`

	// LastSeen advances on reappearance, for timed sources only.
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`

	// IsNew is set on insertion and cleared when the user acknowledges it.
	IsNew bool `json:"is_new" yaml:"is_new"`

	// Hidden is set while the item is absent from live results but still
	// within its source's grace window.
	Hidden bool `json:"hidden" yaml:"hidden"`
}

// SeenAt returns LastSeen, falling back to FirstSeen when LastSeen is unset.
func (r Result) SeenAt() time.Time {
	if r.LastSeen.IsZero() {
		return r.FirstSeen
	}
	return r.LastSeen
}

// FailureKind classifies why a source adapter produced no results.
type FailureKind string

const (
	FailureUnavailable FailureKind = "unavailable"
	FailureError       FailureKind = "error"
	FailureTimeout     FailureKind = "timeout"
	FailureDisabled    FailureKind = "disabled"
	FailurePanic       FailureKind = "panic"
)

// SourceFailure reports an adapter-level failure as data, alongside the
// results of the adapters that succeeded.
type SourceFailure struct {
	Source string      `json:"source" yaml:"source"`
	Kind   FailureKind `json:"kind" yaml:"kind"`
	Reason string      `json:"reason" yaml:"reason"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"strings"
	"time"
)

// Watch is a user-defined persistent search. Its search terms are OR'd
// together by the orchestrator; each term is a query expression.
type Watch struct {
	// ID is a UUID assigned at creation.
	ID string `json:"id" yaml:"id"`

	// DisplayName is the label shown to the user. It is never searched.
	DisplayName string `json:"display_name" yaml:"display_name"`

	// SearchTerms are the query expressions sent to the sources.
	SearchTerms []string `json:"search_terms" yaml:"search_terms"`

	// NegativeFilters drop any item whose title contains one of them.
	NegativeFilters []string `json:"negative_filters,omitempty" yaml:"negative_filters,omitempty"`

	// Sources enables or disables individual sources for this watch.
	// A source missing from the map is disabled.
	Sources map[string]bool `json:"sources" yaml:"sources"`

	// Strict requests full boolean-query enforcement for every source.
	Strict bool `json:"strict" yaml:"strict"`

	// NewCount is the denormalized count of results with IsNew set.
	NewCount int `json:"new_count" yaml:"-"`

	// LastUpdated is when results were last reconciled.
	LastUpdated time.Time `json:"last_updated,omitempty" yaml:"-"`

	// CreatedAt is when the watch was created.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// EnabledSources returns the normalized names of sources enabled for the watch.
func (w Watch) EnabledSources() map[string]bool {
	enabled := make(map[string]bool, len(w.Sources))
	for name, on := range w.Sources {
		if on {
			enabled[SourceKey(name)] = true
		}
	}
	return enabled
}

// StrictOverride expands the watch-level strict flag into a per-source map
// suitable for combining with the global strictness settings.
func (w Watch) StrictOverride() map[string]bool {
	override := make(map[string]bool, len(w.Sources))
	for name := range w.Sources {
		override[SourceKey(name)] = w.Strict
	}
	return override
}

// Validate reports whether the watch can be stored.
func (w Watch) Validate() error {
	if strings.TrimSpace(w.DisplayName) == "" {
		return errors.New("watch display name is required")
	}
	for _, t := range w.SearchTerms {
		if strings.TrimSpace(t) != "" {
			return nil
		}
	}
	return errors.New("watch needs at least one search term")
}

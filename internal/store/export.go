// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// ExportEntry is the portable form of a watch. IDs and counters are not
// exported; importing always creates new watches.
type ExportEntry struct {
	DisplayName     string          `json:"display_name" yaml:"display_name"`
	SearchTerms     []string        `json:"search_terms" yaml:"search_terms"`
	NegativeFilters []string        `json:"negative_filters,omitempty" yaml:"negative_filters,omitempty"`
	Sources         map[string]bool `json:"sources" yaml:"sources"`
	Strict          bool            `json:"strict" yaml:"strict"`
}

func exportEntries(watches []types.Watch) []ExportEntry {
	entries := make([]ExportEntry, len(watches))
	for i, w := range watches {
		entries[i] = ExportEntry{
			DisplayName:     w.DisplayName,
			SearchTerms:     w.SearchTerms,
			NegativeFilters: w.NegativeFilters,
			Sources:         w.Sources,
			Strict:          w.Strict,
		}
	}
	return entries
}

// ExportYAML writes watches to w as a YAML list.
func ExportYAML(w io.Writer, watches []types.Watch) error {
	data, err := yaml.Marshal(exportEntries(watches))
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes watches to w as an indented JSON array.
func ExportJSON(w io.Writer, watches []types.Watch) error {
	data, err := json.MarshalIndent(exportEntries(watches), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// DecodeWatches reads a YAML (or JSON) export and returns watches ready
// for CreateWatch. Every entry is validated.
func DecodeWatches(r io.Reader) ([]types.Watch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var entries []ExportEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing export: %w", err)
	}

	watches := make([]types.Watch, 0, len(entries))
	for i, e := range entries {
		w := types.Watch{
			DisplayName:     e.DisplayName,
			SearchTerms:     e.SearchTerms,
			NegativeFilters: e.NegativeFilters,
			Sources:         e.Sources,
			Strict:          e.Strict,
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		watches = append(watches, w)
	}
	return watches, nil
}

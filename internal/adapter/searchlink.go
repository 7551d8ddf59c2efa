// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"strings"

	"github.com/pdiddy/figure-watch/internal/query"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// PlaceholderPrefix marks synthetic search-link items. The default
// reconciliation policy excludes titles with this prefix from grace-period
// accounting.
const PlaceholderPrefix = "[検索リンク]"

// SearchLinkStrategy is the last resort of a chain: it returns one
// placeholder item linking to the site's own search page.
type SearchLinkStrategy struct {
	Source    string
	SearchURL string
}

// Name returns the strategy identifier.
func (s *SearchLinkStrategy) Name() string { return types.SourceKey(s.Source) + ":search-link" }

// Search returns the placeholder item. It performs no I/O.
func (s *SearchLinkStrategy) Search(_ context.Context, req Request) ([]types.Item, error) {
	terms := query.SearchTerms(req.Term)
	if strings.TrimSpace(terms) == "" || s.SearchURL == "" {
		return nil, nil
	}
	return []types.Item{{
		Title:  PlaceholderPrefix + " " + terms,
		Link:   SearchURL(s.SearchURL, req.Term),
		Source: types.SourceKey(s.Source),
	}}, nil
}

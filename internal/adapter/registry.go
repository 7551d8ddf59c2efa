// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"net/http"

	"github.com/pdiddy/figure-watch/internal/query"
	"github.com/pdiddy/figure-watch/internal/secrets"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// Build constructs one Chain per configured source. Cookies are looked up
// in creds under SourceConfig.CookieSecret (default "<name>-cookie").
func Build(cfg types.AggregateConfig, creds map[string]string, client *http.Client, m *query.Matcher) []Adapter {
	adapters := make([]Adapter, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		name := types.SourceKey(src.Name)
		if name == "" || src.SearchURL == "" {
			continue
		}

		chain := &Chain{Source: name}
		chain.Strategies = append(chain.Strategies, &HTMLStrategy{
			Client:  client,
			Source:  src,
			HTTP:    cfg.HTTP,
			Cookie:  creds[secrets.CookieKey(name, src.CookieSecret)],
			Matcher: m,
		})
		if src.SearchLinkFallback {
			chain.Strategies = append(chain.Strategies, &SearchLinkStrategy{
				Source:    name,
				SearchURL: src.SearchURL,
			})
		}
		adapters = append(adapters, chain)
	}
	return adapters
}

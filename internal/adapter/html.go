// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/figure-watch/internal/httputil"
	"github.com/pdiddy/figure-watch/internal/query"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// HTMLStrategy fetches a marketplace search page and extracts listings with
// CSS selectors. Titles are filtered with the query engine using the
// request's strictness and negative filters.
type HTMLStrategy struct {
	Client  *http.Client
	Source  types.SourceConfig
	HTTP    types.HTTPConfig
	Cookie  string
	Matcher *query.Matcher
}

// Name returns the strategy identifier.
func (s *HTMLStrategy) Name() string { return types.SourceKey(s.Source.Name) + ":html" }

// Search fetches and parses the search page for req.Term.
func (s *HTMLStrategy) Search(ctx context.Context, req Request) ([]types.Item, error) {
	if s.Source.RequiresCookie && s.Cookie == "" {
		return nil, fmt.Errorf("%s: cookie not configured: %w", s.Source.Name, ErrAuthRequired)
	}

	searchURL := SearchURL(s.Source.SearchURL, req.Term)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.HTTP.UserAgent != "" {
		httpReq.Header.Set("User-Agent", s.HTTP.UserAgent)
	}
	if s.Cookie != "" {
		httpReq.Header.Set("Cookie", s.Cookie)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: s.HTTP.Timeout}
	}

	resp, err := httputil.DoWithRetry(ctx, client, httpReq, s.HTTP.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("%s search request: %w", s.Source.Name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s returned HTTP %d: %w", s.Source.Name, resp.StatusCode, ErrAuthRequired)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s returned HTTP %d", s.Source.Name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s results: %w", s.Source.Name, err)
	}

	base := resp.Request.URL
	items := s.extract(doc, base)
	return FilterItems(s.Matcher, items, req), nil
}

func (s *HTMLStrategy) extract(doc *goquery.Document, base *url.URL) []types.Item {
	var items []types.Item
	source := types.SourceKey(s.Source.Name)

	doc.Find(s.Source.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		title := collapseSpace(pick(sel, s.Source.TitleSelector).Text())
		href, _ := pick(sel, s.Source.LinkSelector).Attr("href")
		link := resolve(base, href)
		if title == "" || link == "" {
			return
		}

		item := types.Item{
			Title:  title,
			Link:   link,
			Price:  collapseSpace(pick(sel, s.Source.PriceSelector).Text()),
			Source: source,
		}
		if s.Source.ImageSelector != "" {
			img := sel.Find(s.Source.ImageSelector).First()
			src, ok := img.Attr("data-src")
			if !ok || src == "" {
				src, _ = img.Attr("src")
			}
			item.Image = resolve(base, src)
		}
		items = append(items, item)
	})
	return items
}

// FilterItems drops items whose titles fail the request's query under its
// strictness, or contain one of its negative filters.
func FilterItems(m *query.Matcher, items []types.Item, req Request) []types.Item {
	if m == nil {
		m = query.DefaultMatcher
	}
	node := query.Parse(req.Term)
	out := make([]types.Item, 0, len(items))
	for _, it := range items {
		if !m.Matches(it.Title, node, req.Strict) {
			continue
		}
		if containsAny(m, it.Title, req.Filters) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsAny(m *query.Matcher, title string, filters []string) bool {
	for _, f := range filters {
		if strings.TrimSpace(f) == "" {
			continue
		}
		if m.ContainsText(title, f) {
			return true
		}
	}
	return false
}

// SearchURL fills the "{query}" placeholder of template with the escaped
// native search string for term.
func SearchURL(template, term string) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(query.SearchTerms(term)))
}

func pick(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return sel
	}
	return sel.Find(selector).First()
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

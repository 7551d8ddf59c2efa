// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"time"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// Changes is the diff between a watch's persisted rows and one pass of
// fresh candidates.
type Changes struct {
	// Upserts are rows to insert or update, keyed by link.
	Upserts []types.Result

	// Hide are vanished rows still inside their grace window.
	Hide []types.Result

	// Delete are vanished rows to remove.
	Delete []types.Result

	// NewItems are candidates that matched no persisted row.
	NewItems []types.Item

	// Unclassified lists sources of deleted rows that have no family.
	Unclassified []string
}

type titleKey struct {
	title  string
	source string
}

// Plan computes the changes for one reconciliation pass. It is pure: the
// caller applies the result inside a transaction. When sourceTag is
// non-empty only persisted rows of that source can be hidden or deleted.
func Plan(existing []types.Result, fresh []types.Item, now time.Time, p *Policy, sourceTag string) Changes {
	byLink := make(map[string]types.Result, len(existing))
	byTitle := make(map[titleKey]types.Result, len(existing))
	for _, r := range existing {
		byLink[r.Link] = r
		k := titleKey{r.TitleKey(), r.SourceKey()}
		if _, dup := byTitle[k]; !dup {
			byTitle[k] = r
		}
	}

	// Titles seen this pass, per source family.
	freshTitles := make(map[string]map[string]bool)
	for _, it := range fresh {
		fam, ok := p.Family(it.Source)
		if !ok {
			continue
		}
		if freshTitles[fam] == nil {
			freshTitles[fam] = make(map[string]bool)
		}
		freshTitles[fam][it.TitleKey()] = true
	}

	var ch Changes
	freshLinks := make(map[string]bool, len(fresh))

	for _, it := range fresh {
		if it.Link == "" || freshLinks[it.Link] {
			continue
		}
		freshLinks[it.Link] = true
		it.Source = it.SourceKey()

		prev, found := byLink[it.Link]
		if !found {
			prev, found = byTitle[titleKey{it.TitleKey(), it.Source}]
		}

		if !found {
			ch.Upserts = append(ch.Upserts, types.Result{
				Item:      it,
				FirstSeen: now,
				LastSeen:  now,
				IsNew:     true,
			})
			ch.NewItems = append(ch.NewItems, it)
			continue
		}

		r := types.Result{
			Item:      it,
			WatchID:   prev.WatchID,
			FirstSeen: prev.FirstSeen,
			LastSeen:  prev.LastSeen,
			IsNew:     prev.IsNew,
		}
		if p.Timed(it.Source) {
			r.LastSeen = now
		}
		ch.Upserts = append(ch.Upserts, r)
	}

	tag := types.SourceKey(sourceTag)
	for _, r := range existing {
		if freshLinks[r.Link] {
			continue
		}
		if tag != "" && r.SourceKey() != tag {
			continue
		}
		if p.IsPlaceholder(r.Title) {
			continue
		}

		grace, timed := p.Grace(r.Source)
		if !timed {
			if _, known := p.Family(r.Source); !known {
				ch.Unclassified = append(ch.Unclassified, r.SourceKey())
			}
			ch.Delete = append(ch.Delete, r)
			continue
		}

		fam, _ := p.Family(r.Source)
		age := now.Sub(r.SeenAt())
		if age <= grace && !freshTitles[fam][r.TitleKey()] {
			r.Hidden = true
			r.IsNew = false
			ch.Hide = append(ch.Hide, r)
			continue
		}
		ch.Delete = append(ch.Delete, r)
	}

	return ch
}

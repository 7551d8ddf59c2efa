// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// Policy decides how long a vanished item is retained per source family.
type Policy struct {
	graces       map[string]time.Duration
	families     map[string]string
	placeholders []*regexp.Regexp
}

// NewPolicy compiles cfg. Family names and source names are matched
// case-insensitively.
func NewPolicy(cfg types.ReconcileConfig) (*Policy, error) {
	p := &Policy{
		graces:   make(map[string]time.Duration, len(cfg.Families)),
		families: make(map[string]string, len(cfg.SourceFamilies)),
	}
	for fam, d := range cfg.Families {
		if d < 0 {
			return nil, fmt.Errorf("family %q: negative grace period %s", fam, d)
		}
		p.graces[strings.ToLower(fam)] = d
	}
	for src, fam := range cfg.SourceFamilies {
		p.families[types.SourceKey(src)] = strings.ToLower(fam)
	}
	for _, pat := range cfg.PlaceholderPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("placeholder pattern %q: %w", pat, err)
		}
		p.placeholders = append(p.placeholders, re)
	}
	return p, nil
}

// DefaultPolicy returns the policy built from types.DefaultConfig.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(types.DefaultConfig().Reconcile)
	if err != nil {
		panic(err)
	}
	return p
}

// Family returns the family source belongs to.
func (p *Policy) Family(source string) (string, bool) {
	fam, ok := p.families[types.SourceKey(source)]
	return fam, ok
}

// Grace returns the grace period of source's family. ok is false when the
// source has no family or its family has no grace period.
func (p *Policy) Grace(source string) (time.Duration, bool) {
	fam, ok := p.Family(source)
	if !ok {
		return 0, false
	}
	d, ok := p.graces[fam]
	return d, ok
}

// Timed reports whether source belongs to a family with a grace period.
// Only timed sources advance LastSeen on reappearance.
func (p *Policy) Timed(source string) bool {
	_, ok := p.Grace(source)
	return ok
}

// IsPlaceholder reports whether title is a synthetic fallback title.
func (p *Policy) IsPlaceholder(title string) bool {
	title = strings.TrimSpace(title)
	for _, re := range p.placeholders {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// GarageKitSynonyms is the built-in class of interchangeable garage-kit terms.
var GarageKitSynonyms = []string{
	"ガレージキット",
	"レジンキット",
	"レジンキャスト",
	"レジンキャストキット",
	"ガレキ",
	"キャストキット",
}

// defaultKanaFold folds small kana to their large forms. Both the query and
// the title are folded, so either variant matches the other.
var defaultKanaFold = map[rune]rune{
	'ァ': 'ア', 'ィ': 'イ', 'ゥ': 'ウ', 'ェ': 'エ', 'ォ': 'オ',
	'ッ': 'ツ', 'ャ': 'ヤ', 'ュ': 'ユ', 'ョ': 'ヨ', 'ヮ': 'ワ',
	'ヵ': 'カ', 'ヶ': 'ケ',
	'ぁ': 'あ', 'ぃ': 'い', 'ぅ': 'う', 'ぇ': 'え', 'ぉ': 'お',
	'っ': 'つ', 'ゃ': 'や', 'ゅ': 'ゆ', 'ょ': 'よ', 'ゎ': 'わ',
	'ゕ': 'か', 'ゖ': 'け',
}

// Matcher evaluates parsed queries with a synonym list and kana fold table.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	fold     map[rune]rune
	synonyms [][]string
}

// DefaultMatcher uses the built-in garage-kit synonyms and kana table.
var DefaultMatcher = NewMatcher(types.QueryConfig{})

// NewMatcher builds a Matcher from configuration. Empty tables fall back to
// the built-in defaults.
func NewMatcher(cfg types.QueryConfig) *Matcher {
	m := &Matcher{fold: defaultKanaFold}
	if len(cfg.KanaFold) > 0 {
		m.fold = make(map[rune]rune, len(cfg.KanaFold))
		for from, to := range cfg.KanaFold {
			f, _ := utf8.DecodeRuneInString(from)
			t, _ := utf8.DecodeRuneInString(to)
			if f == utf8.RuneError || t == utf8.RuneError {
				continue
			}
			m.fold[f] = t
		}
	}

	classes := cfg.Synonyms
	if len(classes) == 0 {
		classes = [][]string{GarageKitSynonyms}
	}
	for _, class := range classes {
		normalized := make([]string, 0, len(class))
		for _, s := range class {
			if n := m.Normalize(s); n != "" {
				normalized = append(normalized, n)
			}
		}
		if len(normalized) > 0 {
			m.synonyms = append(m.synonyms, normalized)
		}
	}
	return m
}

// Normalize applies NFKC (full-width ASCII and half-width kana), Unicode
// case folding, and the kana fold table.
func (m *Matcher) Normalize(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if to, ok := m.fold[r]; ok {
			return to
		}
		return r
	}, s)
}

// ContainsText reports whether title contains s after normalization. No
// synonym expansion is applied.
func (m *Matcher) ContainsText(title, s string) bool {
	return strings.Contains(m.Normalize(title), m.Normalize(s))
}

// Matches evaluates n against title. In non-strict mode plain terms pass
// unconditionally; only quoted and negated terms are enforced.
func (m *Matcher) Matches(title string, n Node, strict bool) bool {
	if title == "" || n == nil {
		return false
	}
	return m.eval(m.Normalize(title), n, strict)
}

func (m *Matcher) eval(title string, n Node, strict bool) bool {
	switch v := n.(type) {
	case *Term:
		return m.evalTerm(title, v, strict)
	case *And:
		for _, c := range v.Children {
			if !m.eval(title, c, strict) {
				return false
			}
		}
		return true
	case *Or:
		for _, c := range v.Children {
			if m.eval(title, c, strict) {
				return true
			}
		}
		return false
	}
	return false
}

func (m *Matcher) evalTerm(title string, t *Term, strict bool) bool {
	if !strict && !t.Quoted && !t.Negated {
		return true
	}
	hit := m.containsTerm(title, m.Normalize(t.Value))
	if t.Negated {
		return !hit
	}
	return hit
}

// containsTerm expects both arguments normalized. A term equal to a member
// of a synonym class matches a title containing any member of the class.
func (m *Matcher) containsTerm(title, term string) bool {
	if class := m.synonymClass(term); class != nil {
		for _, member := range class {
			if strings.Contains(title, member) {
				return true
			}
		}
		return false
	}
	return strings.Contains(title, term)
}

func (m *Matcher) synonymClass(term string) []string {
	for _, class := range m.synonyms {
		for _, member := range class {
			if member == term {
				return class
			}
		}
	}
	return nil
}

// MissingTerms parses query and lists the terms title fails to satisfy,
// evaluated strictly. And reports every failing child; Or reports nothing
// if any alternative matches, otherwise all of them. Negated terms are
// never reported.
func (m *Matcher) MissingTerms(title, query string) []string {
	missing := m.missing(m.Normalize(title), Parse(query))
	return dedupe(missing)
}

func (m *Matcher) missing(title string, n Node) []string {
	switch v := n.(type) {
	case *Term:
		if v.Negated || m.evalTerm(title, v, true) {
			return nil
		}
		return []string{v.Value}
	case *And:
		var out []string
		for _, c := range v.Children {
			out = append(out, m.missing(title, c)...)
		}
		return out
	case *Or:
		for _, c := range v.Children {
			if m.eval(title, c, true) {
				return nil
			}
		}
		var out []string
		for _, c := range v.Children {
			out = append(out, m.missing(title, c)...)
		}
		return out
	}
	return nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Matches evaluates n against title with DefaultMatcher.
func Matches(title string, n Node, strict bool) bool {
	return DefaultMatcher.Matches(title, n, strict)
}

// MissingTerms reports unsatisfied terms with DefaultMatcher.
func MissingTerms(title, query string) []string {
	return DefaultMatcher.MissingTerms(title, query)
}

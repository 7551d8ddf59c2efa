// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// --- Parse ---

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "　"} {
		n := Parse(in)
		and, ok := n.(*And)
		require.True(t, ok, "Parse(%q) should return *And", in)
		assert.Empty(t, and.Children)
		assert.True(t, Matches("anything", n, true), "empty And matches everything")
	}
}

func TestParseStructure(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single term", "miku", "AND(miku)"},
		{"space is and", "miku figma", "AND(miku, figma)"},
		{"ampersand is and", "miku&&figma", "AND(miku, figma)"},
		{"ampersand with spaces", "miku && figma", "AND(miku, figma)"},
		{"or group", "saber|artoria", "AND(OR(saber, artoria))"},
		{"or with spaces", "saber | artoria", "AND(OR(saber, artoria))"},
		{"or binds tighter", "fate saber|artoria", "AND(fate, OR(saber, artoria))"},
		{"negation", "miku -bootleg", "AND(miku, -bootleg)"},
		{"quoted", `"1/7" miku`, `AND("1/7", miku)`},
		{"single quotes", `'1/7'`, `AND("1/7")`},
		{"ideographic space", "初音ミク　ねんどろいど", "AND(初音ミク, ねんどろいど)"},
		{"dangling pipe", "a|", "AND(a)"},
		{"lone dash", "-", "AND(-)"},
		{"too short to be quoted", `""`, `AND("")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input).String())
		})
	}
}

func TestParseQuotedPhraseSplits(t *testing.T) {
	n := Parse(`"Exact Phrase"`).(*And)
	require.Len(t, n.Children, 2)

	first := n.Children[0].(*Term)
	second := n.Children[1].(*Term)
	assert.Equal(t, `"Exact`, first.Value)
	assert.False(t, first.Quoted)
	assert.Equal(t, `Phrase"`, second.Value)
	assert.False(t, second.Quoted)
}

func TestParseQuotedNegation(t *testing.T) {
	n := Parse(`"-bootleg"`).(*And)
	term := n.Children[0].(*Term)
	assert.True(t, term.Quoted)
	assert.True(t, term.Negated)
	assert.Equal(t, "bootleg", term.Value)
}

func TestParseNegatedQuote(t *testing.T) {
	n := Parse(`-"bootleg" miku`).(*And)
	require.Len(t, n.Children, 2)
	term := n.Children[0].(*Term)
	assert.True(t, term.Quoted)
	assert.True(t, term.Negated)
	assert.Equal(t, "bootleg", term.Value)
	assert.Equal(t, `AND(-"bootleg", miku)`, n.String())
}

func TestParseIsTotal(t *testing.T) {
	inputs := []string{"|||", "&&&&", `"`, `"a`, "- - -", "a||b", "&&|&&", "\"\"\"", "a | | b"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) }, "Parse(%q)", in)
		n := Parse(in)
		first := Matches("title", n, true)
		assert.Equal(t, first, Matches("title", n, true), "deterministic for %q", in)
	}
}

// --- Matches ---

func TestMatchesNilAndEmpty(t *testing.T) {
	assert.False(t, Matches("", Parse("miku"), true))
	assert.False(t, Matches("miku", nil, true))
	assert.False(t, Matches("miku", &Or{}, true), "empty Or matches nothing")
	assert.True(t, Matches("miku", &And{}, true))
}

func TestMatchesStrict(t *testing.T) {
	tests := []struct {
		name  string
		query string
		title string
		want  bool
	}{
		{"case insensitive", "FIGMA", "Figma Hatsune Miku", true},
		{"all and terms", "figma miku", "figma Hatsune Miku", true},
		{"missing and term", "figma rin", "figma Hatsune Miku", false},
		{"or alternative", "saber|artoria", "Artoria figure", true},
		{"negated excluded", "miku -bootleg", "miku bootleg copy", false},
		{"negated absent", "miku -bootleg", "miku genuine", true},
		{"full width ascii", "figma", "ｆｉｇｍａ 初音ミク", true},
		{"half width kana", "ミク", "初音ﾐｸ", true},
		{"small kana query", "フィギュア", "フイギユア 初音ミク", true},
		{"large kana query", "フイギユア", "フィギュア 初音ミク", true},
		{"small tsu", "キット", "キツト", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.title, Parse(tt.query), true))
		})
	}
}

func TestMatchesNonStrict(t *testing.T) {
	tests := []struct {
		name  string
		query string
		title string
		want  bool
	}{
		{"plain terms pass", "figma rin", "something else", true},
		{"quoted enforced", `"figma" rin`, "something else", false},
		{"quoted present", `"figma" rin`, "figma miku", true},
		{"negation enforced", "miku -bootleg", "bootleg", false},
		{"negation absent", "miku -bootleg", "genuine", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.title, Parse(tt.query), false))
		})
	}
}

func TestMatchesScenarioSynonym(t *testing.T) {
	assert.True(t, Matches("初音ミクレジンキット", Parse("ガレージキット 初音ミク"), true))
}

func TestMatchesScenarioOr(t *testing.T) {
	n := Parse("セイバー|アルトリア")
	assert.False(t, Matches("ランサー フィギュア", n, true))
	assert.True(t, Matches("アルトリア フィギュア", n, true))
}

func TestSynonymSymmetry(t *testing.T) {
	for _, a := range GarageKitSynonyms {
		for _, b := range GarageKitSynonyms {
			title := "初音ミク " + a + " 1/8"
			assert.True(t, Matches(title, Parse(b), true), "title with %q should match query %q", a, b)
		}
	}
}

func TestSynonymNegation(t *testing.T) {
	n := Parse("初音ミク -ガレキ")
	assert.False(t, Matches("初音ミク レジンキャスト", n, true), "negation applies after synonym expansion")
	assert.True(t, Matches("初音ミク 完成品", n, true))
}

func TestNegationInverts(t *testing.T) {
	titles := []string{"figma miku", "nendoroid rin", "ＦＩＧＭＡ"}
	terms := []string{"figma", "rin", "luka"}
	for _, title := range titles {
		for _, term := range terms {
			pos := Matches(title, Parse(term), true)
			neg := Matches(title, Parse("-"+term), true)
			assert.Equal(t, !pos, neg, "title %q term %q", title, term)

			qpos := Matches(title, Parse(`"`+term+`"`), false)
			qneg := Matches(title, Parse(`"-`+term+`"`), false)
			assert.Equal(t, !qpos, qneg, "quoted title %q term %q", title, term)

			for _, strict := range []bool{true, false} {
				pos := Matches(title, Parse(`"`+term+`"`), strict)
				neg := Matches(title, Parse(`-"`+term+`"`), strict)
				assert.Equal(t, !pos, neg, "-\"%s\" on %q strict=%t", term, title, strict)
			}
		}
	}
}

func TestCustomMatcher(t *testing.T) {
	m := NewMatcher(types.QueryConfig{
		Synonyms: [][]string{{"ねんどろいど", "nendoroid"}},
		KanaFold: map[string]string{"ぁ": "あ"},
	})

	assert.True(t, m.Matches("Nendoroid Miku", Parse("ねんどろいど"), true))
	assert.False(t, m.Matches("初音ミクレジンキット", Parse("ガレージキット"), true), "default class replaced")
	assert.True(t, m.Matches("ぁいう", Parse("あい"), true))
	assert.False(t, m.Matches("キツト", Parse("キット"), true), "default kana table replaced")
}

// --- HasQuotedTerms ---

func TestHasQuotedTerms(t *testing.T) {
	assert.False(t, HasQuotedTerms(Parse("a b|c")))
	assert.True(t, HasQuotedTerms(Parse(`a "b"|c`)))
	assert.True(t, HasQuotedTerms(Parse(`"a"`)))
	assert.False(t, HasQuotedTerms(Parse(`"Exact Phrase"`)))
	assert.False(t, HasQuotedTerms(nil))
}

// --- MissingTerms ---

func TestMissingTerms(t *testing.T) {
	tests := []struct {
		name  string
		title string
		query string
		want  []string
	}{
		{"none missing", "figma miku", "figma miku", []string{}},
		{"and reports all failures", "figma", "figma miku rin", []string{"miku", "rin"}},
		{"or satisfied", "artoria", "fate saber|artoria", []string{"fate"}},
		{"or unsatisfied", "lancer", "saber|artoria", []string{"saber", "artoria"}},
		{"negated never reported", "bootleg", "miku -bootleg", []string{"miku"}},
		{"quoted reported without quotes", "miku", `"1/7" miku`, []string{"1/7"}},
		{"synonym satisfied", "初音ミク ガレキ", "レジンキット 初音ミク", []string{}},
		{"duplicates collapsed", "x", "a a|a", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingTerms(tt.title, tt.query))
		})
	}
}

// --- SearchTerms ---

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"saber|artoria", "saber artoria"},
		{"miku && figma", "miku figma"},
		{"  a   b  ", "a b"},
		{"fate saber | artoria -bootleg", "fate saber artoria -bootleg"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SearchTerms(tt.in), "SearchTerms(%q)", tt.in)
	}
}

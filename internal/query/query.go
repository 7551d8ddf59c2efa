// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query compiles watch search expressions into a two-level boolean
// tree and evaluates it against listing titles.
//
// Grammar: operands separated by whitespace or "&&" are AND'd; within an
// operand, alternatives separated by "|" are OR'd. OR binds tighter than
// AND and there is no further nesting. A leading "-" negates a term; a term
// wrapped in matching quotes is marked Quoted. Parsing never fails.
//
// Quote stripping happens after whitespace splitting, so a quoted phrase
// such as "Exact Phrase" becomes two unquoted terms `"Exact` and `Phrase"`.
package query

import (
	"regexp"
	"strings"
)

// Node is an element of a parsed query: *Term, *And or *Or.
type Node interface {
	String() string
	node()
}

// Term is a leaf. Value excludes any quotes and negation marker.
type Term struct {
	Value   string
	Quoted  bool
	Negated bool
}

// And matches when every child matches. An empty And matches everything.
type And struct {
	Children []Node
}

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	Children []Node
}

func (*Term) node() {}
func (*And) node()  {}
func (*Or) node()   {}

func (t *Term) String() string {
	v := t.Value
	if t.Negated {
		v = "-" + v
	}
	if t.Quoted {
		v = `"` + v + `"`
	}
	return v
}

func (a *And) String() string { return "AND(" + joinNodes(a.Children) + ")" }
func (o *Or) String() string  { return "OR(" + joinNodes(o.Children) + ")" }

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

var (
	// pipeSpace collapses whitespace around "|" so "a | b" parses like "a|b".
	pipeSpace = regexp.MustCompile(`[\s\x{3000}]*\|[\s\x{3000}]*`)

	// andSplit separates top-level AND operands. Ideographic spaces count,
	// since Japanese input methods produce them.
	andSplit = regexp.MustCompile(`[\s\x{3000}]+|&&`)

	operatorChars = strings.NewReplacer("&&", " ", "|", " ")
)

// Parse compiles a query string. Empty input yields an empty And.
func Parse(query string) Node {
	q := strings.TrimSpace(query)
	root := &And{}
	if q == "" {
		return root
	}
	q = pipeSpace.ReplaceAllString(q, "|")

	for _, operand := range andSplit.Split(q, -1) {
		var alts []Node
		for _, alt := range strings.Split(operand, "|") {
			if alt == "" {
				continue
			}
			alts = append(alts, parseTerm(alt))
		}
		switch len(alts) {
		case 0:
		case 1:
			root.Children = append(root.Children, alts[0])
		default:
			root.Children = append(root.Children, &Or{Children: alts})
		}
	}
	return root
}

// parseTerm accepts both -"x" and "-x" for a negated quoted term.
func parseTerm(tok string) *Term {
	t := &Term{Value: tok}
	if len(t.Value) > 1 && t.Value[0] == '-' {
		t.Value = t.Value[1:]
		t.Negated = true
	}
	if isQuoted(t.Value) {
		t.Value = t.Value[1 : len(t.Value)-1]
		t.Quoted = true
	}
	if !t.Negated && len(t.Value) > 1 && t.Value[0] == '-' {
		t.Value = t.Value[1:]
		t.Negated = true
	}
	return t
}

func isQuoted(tok string) bool {
	if len(tok) <= 2 {
		return false
	}
	q := tok[0]
	return (q == '"' || q == '\'') && tok[len(tok)-1] == q
}

// HasQuotedTerms reports whether any leaf of n is quoted.
func HasQuotedTerms(n Node) bool {
	switch v := n.(type) {
	case *Term:
		return v.Quoted
	case *And:
		return anyQuoted(v.Children)
	case *Or:
		return anyQuoted(v.Children)
	}
	return false
}

func anyQuoted(children []Node) bool {
	for _, c := range children {
		if HasQuotedTerms(c) {
			return true
		}
	}
	return false
}

// SearchTerms strips the boolean operators from query and normalizes
// whitespace, producing a plain string for a marketplace's native search box.
func SearchTerms(query string) string {
	return strings.Join(strings.Fields(operatorChars.Replace(query)), " ")
}

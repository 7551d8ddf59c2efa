// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/figure-watch/internal/query"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Explain how a query evaluates against a listing title",
	Long: `Match parses a query, evaluates it against a title with the configured
synonyms and kana folding, and prints the verdict, the parse tree, the
terms the title is missing, and the string sent to native search boxes.`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().String("query", "", "query expression")
	matchCmd.Flags().String("title", "", "listing title")
	matchCmd.Flags().Bool("strict", false, "evaluate strictly (substring match instead of loose)")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	q, _ := cmd.Flags().GetString("query")
	title, _ := cmd.Flags().GetString("title")
	strict, _ := cmd.Flags().GetBool("strict")
	if q == "" || title == "" {
		return fmt.Errorf("both --query and --title are required")
	}

	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return err
	}
	explainMatch(os.Stdout, query.NewMatcher(cfg.Query), q, title, strict)
	return nil
}

func explainMatch(w io.Writer, m *query.Matcher, q, title string, strict bool) {
	node := query.Parse(q)
	verdict := "no match"
	if m.Matches(title, node, strict || query.HasQuotedTerms(node)) {
		verdict = "match"
	}

	mode := "loose"
	if strict {
		mode = "strict"
	} else if query.HasQuotedTerms(node) {
		mode = "strict (quoted terms)"
	}

	fmt.Fprintf(w, "verdict:  %s (%s)\n", verdict, mode)
	fmt.Fprintf(w, "tree:     %s\n", node)
	fmt.Fprintf(w, "title:    %s\n", m.Normalize(title))
	if missing := m.MissingTerms(title, q); len(missing) > 0 {
		fmt.Fprintf(w, "missing:  %s\n", strings.Join(missing, ", "))
	}
	fmt.Fprintf(w, "native:   %s\n", query.SearchTerms(q))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-watch/internal/aggregate"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the configured sources once without saving",
	Long: `Search runs one query across the configured sources and prints the
merged listings. Nothing is stored. Sources that fail are listed as warnings
below the results.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("term", "", "query expression (space = AND, | = OR, -x = NOT, \"x\" = mandatory)")
	searchCmd.Flags().StringSlice("sources", nil, "limit the search to these sources (default all)")
	searchCmd.Flags().StringSlice("exclude", nil, "drop listings whose title contains any of these")
	searchCmd.Flags().Bool("loose", false, "relax strict matching on every source")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	term, _ := cmd.Flags().GetString("term")
	if term == "" && len(args) > 0 {
		term = strings.Join(args, " ")
	}
	if strings.TrimSpace(term) == "" {
		return fmt.Errorf("provide a query with --term")
	}
	sources, _ := cmd.Flags().GetStringSlice("sources")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	loose, _ := cmd.Flags().GetBool("loose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	agg := a.aggregator()
	if len(agg.Sources()) == 0 {
		return fmt.Errorf("no sources configured: add aggregate.sources to the config file")
	}

	var enabled map[string]bool
	if len(sources) > 0 {
		enabled = toSet(sources, true)
	}
	var strict map[string]bool
	if loose {
		strict = toSet(agg.Sources(), false)
	}

	out := agg.SearchAll(ctx, term, enabled, strict, exclude)
	out.Items = aggregate.Dedupe(out.Items)
	if jsonOutput {
		return aggregate.FormatJSON(out, os.Stdout)
	}
	aggregate.FormatTable(out, os.Stdout)
	return nil
}

func toSet(keys []string, v bool) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			m[k] = v
		}
	}
	return m
}

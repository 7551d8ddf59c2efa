// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-watch/internal/store"
	"github.com/pdiddy/figure-watch/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watches (add, list, show, edit, remove, export, import)",
	Long: `Watch manages the saved searches. A watch has a display name, one or more
search terms that are OR'd together, optional negative filters, and the set
of sources it runs on.`,
}

// --- add subcommand ---

var watchAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a watch",
	RunE:  runWatchAdd,
}

func runWatchAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	w := watchFromFlags(cmd, a.cfg)
	w, err = a.store.CreateWatch(ctx, w)
	if err != nil {
		return err
	}
	fmt.Printf("Created watch %s (%s)\n", w.ID, w.DisplayName)
	return nil
}

// watchFromFlags builds a watch from the add flags. Without --sources every
// configured source is enabled.
func watchFromFlags(cmd *cobra.Command, cfg types.Config) types.Watch {
	name, _ := cmd.Flags().GetString("name")
	terms, _ := cmd.Flags().GetStringArray("term")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	sources, _ := cmd.Flags().GetStringSlice("sources")
	strict, _ := cmd.Flags().GetBool("strict")

	if len(sources) == 0 {
		for _, src := range cfg.Aggregate.Sources {
			sources = append(sources, src.Name)
		}
	}
	return types.Watch{
		DisplayName:     name,
		SearchTerms:     terms,
		NegativeFilters: exclude,
		Sources:         toSet(sources, true),
		Strict:          strict,
	}
}

// --- list subcommand ---

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watches with their new-item counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		watches, err := a.store.ListWatches(ctx)
		if err != nil {
			return err
		}
		printWatches(os.Stdout, watches)
		return nil
	},
}

func printWatches(w io.Writer, watches []types.Watch) {
	if len(watches) == 0 {
		fmt.Fprintln(w, "No watches.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-24s  %-4s  %-16s  %s\n", "ID", "Name", "New", "Updated", "Terms")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, wt := range watches {
		updated := "never"
		if !wt.LastUpdated.IsZero() {
			updated = wt.LastUpdated.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%-36s  %-24s  %-4d  %-16s  %s\n",
			wt.ID, wt.DisplayName, wt.NewCount, updated, strings.Join(wt.SearchTerms, " | "))
	}
}

// --- show subcommand ---

var watchShowCmd = &cobra.Command{
	Use:   "show <watch-id>",
	Short: "Show a watch and its visible results, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		wt, err := a.store.GetWatch(ctx, args[0])
		if err != nil {
			return err
		}
		results, err := a.store.VisibleResults(ctx, wt.ID)
		if err != nil {
			return err
		}
		printWatch(os.Stdout, wt, results)
		return nil
	},
}

func printWatch(w io.Writer, wt types.Watch, results []types.Result) {
	fmt.Fprintf(w, "%s (%s)\n", wt.DisplayName, wt.ID)
	fmt.Fprintf(w, "  terms:    %s\n", strings.Join(wt.SearchTerms, " | "))
	if len(wt.NegativeFilters) > 0 {
		fmt.Fprintf(w, "  exclude:  %s\n", strings.Join(wt.NegativeFilters, ", "))
	}
	fmt.Fprintf(w, "  sources:  %s\n", strings.Join(slices.Sorted(maps.Keys(wt.EnabledSources())), ", "))
	fmt.Fprintf(w, "  strict:   %t\n", wt.Strict)
	fmt.Fprintf(w, "  new:      %d\n\n", wt.NewCount)

	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for _, r := range results {
		marker := " "
		if r.IsNew {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s  %-12s  %s  %s\n",
			marker, r.Source, r.Price, r.FirstSeen.Local().Format(time.DateOnly), r.Title)
		fmt.Fprintf(w, "  %s\n", r.Link)
	}
}

// --- edit subcommand ---

var watchEditCmd = &cobra.Command{
	Use:   "edit <watch-id>",
	Short: "Change a watch; only the flags given are updated",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchEdit,
}

func runWatchEdit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	wt, err := a.store.GetWatch(ctx, args[0])
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("name") {
		wt.DisplayName, _ = f.GetString("name")
	}
	if f.Changed("term") {
		wt.SearchTerms, _ = f.GetStringArray("term")
	}
	if f.Changed("exclude") {
		wt.NegativeFilters, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("sources") {
		sources, _ := f.GetStringSlice("sources")
		wt.Sources = toSet(sources, true)
	}
	if f.Changed("strict") {
		wt.Strict, _ = f.GetBool("strict")
	}
	if err := a.store.UpdateWatch(ctx, wt); err != nil {
		return err
	}
	fmt.Printf("Updated watch %s\n", wt.ID)
	return nil
}

// --- remove subcommand ---

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <watch-id>...",
	Short: "Delete watches and their results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range args {
			if err := a.store.DeleteWatch(ctx, id); err != nil {
				return fmt.Errorf("removing %s: %w", id, err)
			}
			fmt.Printf("Removed watch %s\n", id)
		}
		return nil
	},
}

// --- export subcommand ---

var watchExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export watches to YAML or JSON",
	Long: `Export writes every watch definition to stdout, or to --out. IDs and
counters are not exported; the file can be imported into another database.`,
	RunE: runWatchExport,
}

func runWatchExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	ctx := context.Background()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	watches, err := a.store.ListWatches(ctx)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "yaml", "":
		err = store.ExportYAML(out, watches)
	case "json":
		err = store.ExportJSON(out, watches)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "Exported %d watch(es) to %s\n", len(watches), outPath)
	}
	return nil
}

// --- import subcommand ---

var watchImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create watches from a YAML or JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		watches, err := store.DecodeWatches(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		ctx := context.Background()
		a, err := newApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, w := range watches {
			created, err := a.store.CreateWatch(ctx, w)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %s (%s)\n", created.DisplayName, created.ID)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{watchAddCmd, watchEditCmd} {
		c.Flags().String("name", "", "display name")
		c.Flags().StringArray("term", nil, "search term; repeat for several terms")
		c.Flags().StringSlice("exclude", nil, "negative filters (comma-separated)")
		c.Flags().StringSlice("sources", nil, "enabled sources (default all configured)")
		c.Flags().Bool("strict", false, "enforce the full query on every source")
	}

	watchExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	watchExportCmd.Flags().String("out", "", "output file (default stdout)")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchShowCmd)
	watchCmd.AddCommand(watchEditCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchExportCmd)
	watchCmd.AddCommand(watchImportCmd)

	rootCmd.AddCommand(watchCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var seenCmd = &cobra.Command{
	Use:   "seen [watch-id]",
	Short: "Acknowledge new items",
	Long: `Seen clears the new flag on the results of one watch, on a single
result with --link, or on every watch with --all.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeen,
}

func init() {
	seenCmd.Flags().Bool("all", false, "acknowledge every watch")
	seenCmd.Flags().String("link", "", "acknowledge one result of the watch")

	rootCmd.AddCommand(seenCmd)
}

func runSeen(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	link, _ := cmd.Flags().GetString("link")

	switch {
	case all && len(args) > 0:
		return fmt.Errorf("--all takes no watch id")
	case !all && len(args) == 0:
		return fmt.Errorf("provide a watch id or --all")
	case link != "" && len(args) == 0:
		return fmt.Errorf("--link needs a watch id")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case all:
		err = a.store.MarkAllSeen(ctx)
	case link != "":
		err = a.store.MarkItemSeen(ctx, args[0], link)
	default:
		err = a.store.MarkSeen(ctx, args[0])
	}
	if err != nil {
		return err
	}
	fmt.Println("Marked as seen.")
	return nil
}

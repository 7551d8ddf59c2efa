// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-watch/internal/orchestrate"
)

var runCmd = &cobra.Command{
	Use:   "run [watch-id...]",
	Short: "Refresh watches and report new listings",
	Long: `Run searches every term of each watch on its enabled sources, reconciles
the listings with the stored results, and notifies new items.

Without arguments all watches are refreshed as one batch. Batch progress is
stored, so a batch stopped by a crash or an interrupt resumes with the
remaining watches on the next run. The first interrupt finishes the current
chunk of watches and stops; a second one cancels immediately.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(os.Stderr, "Interrupted: finishing the current watches (interrupt again to cancel)")
		runner.Abort()
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	rep, err := runner.Run(ctx, args)
	printReport(os.Stdout, rep)
	if err != nil {
		return err
	}
	if n := rep.Failed(); n > 0 {
		return fmt.Errorf("%d watch(es) failed", n)
	}
	return nil
}

func printReport(w io.Writer, rep orchestrate.Report) {
	for _, wr := range rep.Watches {
		name := wr.DisplayName
		if name == "" {
			name = wr.WatchID
		}
		if wr.Err != nil {
			fmt.Fprintf(w, "  FAIL %s: %v\n", name, wr.Err)
			continue
		}
		fmt.Fprintf(w, "  %-30s %3d new  %4d visible  %3d hidden  %3d deleted\n",
			name, wr.New, wr.Visible, wr.Hidden, wr.Deleted)
		for _, f := range wr.Failures {
			fmt.Fprintf(w, "       warning: %s %s: %s\n", f.Source, f.Kind, f.Reason)
		}
	}

	switch {
	case rep.Aborted:
		fmt.Fprintf(w, "Stopped after %d watch(es); run again to resume.\n", len(rep.Watches))
	case rep.Resumed:
		fmt.Fprintf(w, "Resumed batch finished: %d watch(es), %d failed.\n", len(rep.Watches), rep.Failed())
	default:
		fmt.Fprintf(w, "Refreshed %d watch(es), %d failed.\n", len(rep.Watches), rep.Failed())
	}
}

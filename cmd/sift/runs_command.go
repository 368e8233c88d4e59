package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sift/internal/journal"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the organizer run journal",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))

	return runsCmd
}

func openJournal(ctx *commandContext, cmd *cobra.Command) (*journal.Store, error) {
	stack, err := ctx.components(cmd.Context(), false)
	if err != nil {
		return nil, err
	}
	if stack.Journal == nil {
		return nil, errors.New("run journal is not available")
	}
	return stack.Journal, nil
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(ctx, cmd)
			if err != nil {
				return err
			}
			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if runs == nil {
					runs = []journal.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				status := string(r.Status)
				if r.DryRun {
					status += " (dry run)"
				}
				rows = append(rows, []string{
					shortID(r.ID),
					shortenPath(r.Root, 40),
					r.Trigger,
					status,
					strconv.Itoa(r.Scanned),
					strconv.Itoa(r.Executed),
					strconv.Itoa(r.ManualReview),
					strconv.Itoa(r.Failed),
					humanize.Time(r.StartedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Root", "Trigger", "Status", "Scanned", "Executed", "Review", "Failed", "Started"},
				rows,
				4, 5, 6, 7,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show (0 = all)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(ctx, cmd)
			if err != nil {
				return err
			}
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, run)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", run.ID)
			fmt.Fprintf(out, "  Root:      %s\n", run.Root)
			fmt.Fprintf(out, "  Trigger:   %s\n", run.Trigger)
			fmt.Fprintf(out, "  Status:    %s\n", run.Status)
			fmt.Fprintf(out, "  Dry run:   %s\n", yesNo(run.DryRun))
			fmt.Fprintf(out, "  Started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "  Finished:  %s (%s)\n", run.FinishedAt.Local().Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
			}
			fmt.Fprintf(out, "  Scanned:   %d\n", run.Scanned)
			fmt.Fprintf(out, "  Executed:  %d\n", run.Executed)
			fmt.Fprintf(out, "  Review:    %d\n", run.ManualReview)
			fmt.Fprintf(out, "  Skipped:   %d\n", run.Skipped)
			fmt.Fprintf(out, "  Failed:    %d\n", run.Failed)
			if run.BytesReclaimed > 0 {
				fmt.Fprintf(out, "  Reclaimed: %s\n", formatBytes(run.BytesReclaimed))
			}
			if run.Error != "" {
				fmt.Fprintf(out, "  Error:     %s\n", run.Error)
			}
			return nil
		},
	}
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal rows older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			store, err := openJournal(ctx, cmd)
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d journal row(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Age cutoff")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

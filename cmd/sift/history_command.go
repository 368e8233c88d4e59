package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sift/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the action ledger",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryBackupsCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ledger.Filter{Limit: limit, Offset: offset}
			if strings.TrimSpace(typeFlag) != "" {
				t, ok := ledger.ParseActionType(typeFlag)
				if !ok {
					return fmt.Errorf("unknown action type %q (want move, copy or delete)", typeFlag)
				}
				filter.Type = t
			}
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			entries, err := stack.Ledger.History(filter)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				if entries == nil {
					entries = []ledger.Entry{}
				}
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No actions recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.Itoa(e.ID),
					string(e.Type),
					shortenPath(e.Source, 50),
					shortenPath(e.Destination, 40),
					string(e.Status),
					humanize.Time(e.Timestamp),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Type", "Source", "Destination", "Status", "When"},
				rows,
				0,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "Only show actions of this type (move, copy, delete)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many of the newest entries")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid action id %q", args[0])
			}
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			entry, err := stack.Ledger.Get(id)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, entry)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Action #%d: %s\n", entry.ID, entry.Describe())
			fmt.Fprintf(out, "  Status:    %s\n", entry.Status)
			fmt.Fprintf(out, "  Recorded:  %s\n", entry.Timestamp.Local().Format(time.RFC3339))
			if entry.UndoneAt != nil {
				fmt.Fprintf(out, "  Undone:    %s\n", entry.UndoneAt.Local().Format(time.RFC3339))
			}
			fmt.Fprintf(out, "  Remote:    %s\n", yesNo(entry.Remote))
			if entry.Backup != "" {
				fmt.Fprintf(out, "  Backup:    %s\n", entry.Backup)
			}
			for _, key := range sortedKeys(entry.Metadata) {
				fmt.Fprintf(out, "  %-10s %s\n", key+":", entry.Metadata[key])
			}
			return nil
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var before string
	var olderThan time.Duration
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop ledger entries (all, or those recorded before a cutoff)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := clearCutoff(before, olderThan, time.Now())
			if err != nil {
				return err
			}
			if cutoff.IsZero() && !yes {
				return errors.New("refusing to clear the whole ledger without --yes")
			}
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			cleared, err := stack.Ledger.Clear(cutoff)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"cleared": cleared})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d action(s)\n", cleared)
			return nil
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Clear entries recorded before this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Clear entries older than this duration (e.g. 720h)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing every entry")
	return cmd
}

// clearCutoff resolves the clear flags. A zero result means everything.
func clearCutoff(before string, olderThan time.Duration, now time.Time) (time.Time, error) {
	before = strings.TrimSpace(before)
	if before != "" && olderThan > 0 {
		return time.Time{}, errors.New("use either --before or --older-than, not both")
	}
	if olderThan < 0 {
		return time.Time{}, errors.New("--older-than must be positive")
	}
	if olderThan > 0 {
		return now.Add(-olderThan), nil
	}
	if before == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, before, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --before %q (want YYYY-MM-DD or RFC3339)", before)
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			stats, err := stack.Ledger.Stats()
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total actions: %d\n", stats.Total)
			fmt.Fprintf(out, "  Executed:    %d\n", stats.Executed)
			fmt.Fprintf(out, "  Undone:      %d\n", stats.Undone)
			fmt.Fprintf(out, "  Remote:      %d\n", stats.Remote)
			for _, t := range []ledger.ActionType{ledger.ActionMove, ledger.ActionCopy, ledger.ActionDelete} {
				fmt.Fprintf(out, "  %-12s %d\n", string(t)+":", stats.ByType[t])
			}
			fmt.Fprintf(out, "Next id: %d\n", stats.NextID)
			return nil
		},
	}
}

func newHistoryBackupsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List delete snapshots kept for undo",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			backups, err := stack.Ledger.ListBackups()
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if backups == nil {
					backups = []ledger.BackupInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"backup_dir": stack.Ledger.BackupDir(),
					"backups":    backups,
				})
			}
			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups found")
				return nil
			}
			fmt.Fprintf(out, "Backup directory: %s\n\n", stack.Ledger.BackupDir())
			rows := make([][]string, 0, len(backups))
			for _, b := range backups {
				rows = append(rows, []string{
					strconv.Itoa(b.ActionID),
					b.Name,
					yesNo(b.Pending),
					humanize.Time(b.ModTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Action", "Name", "Pending", "Age"},
				rows,
				0,
			))
			return nil
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove delete snapshots older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			result, err := stack.Ledger.PruneBackups(maxAge)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				failures := make([]map[string]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					failures = append(failures, map[string]string{"path": e.Path, "error": e.Error.Error()})
				}
				removed := result.Removed
				if removed == nil {
					removed = []string{}
				}
				return writeJSON(cmd, map[string]any{"removed": removed, "errors": failures})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d backup(s)\n", len(result.Removed))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  failed %s: %s\n", e.Path, e.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d backup(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "Remove snapshots older than this")
	return cmd
}

package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"sift/internal/executor"
	"sift/internal/organizer"
)

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var duplicates bool
	var showAll bool

	cmd := &cobra.Command{
		Use:   "organize <dir>",
		Short: "Score a directory and carry out confident decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			report, err := stack.Organizer.Run(cmd.Context(), organizer.Request{
				Root:       root,
				Trigger:    "manual",
				Duplicates: duplicates,
			})
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			results := report.Results
			if !showAll {
				results = interesting(results)
			}
			if len(results) > 0 {
				fmt.Fprintln(out, renderResults(results, shouldColorize(out)))
			}
			label := "Organized"
			if report.DryRun {
				label = "Dry run of"
			}
			c := report.Counts
			fmt.Fprintf(out, "%s %s: %d scanned, %d executed, %d for review, %d skipped, %d failed\n",
				label, report.Root, c.Scanned, c.Executed, c.ManualReview, c.Skipped, c.Failed)
			if c.BytesReclaimed > 0 {
				fmt.Fprintf(out, "%s reclaimed\n", formatBytes(c.BytesReclaimed))
			}
			fmt.Fprintf(out, "Run ID: %s\n", report.RunID)
			if c.Failed > 0 {
				return fmt.Errorf("%d action(s) failed", c.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide and gate but do not touch files")
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "Hash files and flag redundant copies")
	cmd.Flags().BoolVar(&showAll, "all", false, "List skipped and no-op files too")
	return cmd
}

// interesting drops results that neither did nor wanted anything.
func interesting(results []executor.Result) []executor.Result {
	out := make([]executor.Result, 0, len(results))
	for _, r := range results {
		switch {
		case r.Executed, r.Err != nil, r.Method == executor.MethodManualReview:
			out = append(out, r)
		case r.Method == executor.MethodAutomatic && r.Operation != "":
			out = append(out, r)
		}
	}
	return out
}

func renderResults(results []executor.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		id := "-"
		if r.ActionID >= 0 {
			id = strconv.Itoa(r.ActionID)
		}
		detail := r.Reason
		if r.Err != nil {
			detail = r.Err.Error()
		} else if r.Target != "" && detail == "" {
			detail = "-> " + r.Target
		}
		rows = append(rows, []string{
			id,
			shortenPath(r.Path, 50),
			string(r.Action),
			formatConfidence(r.Confidence),
			paint(resultStatus(r), resultColor(r), colorize),
			detail,
		})
	}
	return renderTable(
		[]string{"ID", "File", "Action", "Confidence", "Status", "Detail"},
		rows,
		0, 3,
	)
}

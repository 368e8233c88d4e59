package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/decision"
	"sift/internal/executor"
	"sift/internal/organizer"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var duplicates bool
	var limit int

	cmd := &cobra.Command{
		Use:     "scan <dir>",
		Aliases: []string{"decide"},
		Short:   "Score a directory and show what would happen, without touching files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			report, err := stack.Organizer.Plan(cmd.Context(), organizer.Request{Root: root, Duplicates: duplicates})
			if err != nil {
				return err
			}
			if limit > 0 && len(report.Decisions) > limit {
				report.Decisions = report.Decisions[:limit]
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if len(report.Decisions) == 0 {
				fmt.Fprintf(out, "No files found in %s\n", root)
				return nil
			}
			fmt.Fprintln(out, renderDecisions(report.Decisions, stack.Router, shouldColorize(out)))
			fmt.Fprintln(out, summarizeMethods(report.Decisions, stack.Router))
			if len(report.Groups) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderGroups(report.Groups))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "Hash files and flag redundant copies")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many decisions (0 = all)")
	return cmd
}

func renderDecisions(decisions []decision.Decision, router *executor.Router, colorize bool) string {
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		method := router.MethodFor(d.Confidence)
		source := string(d.Source)
		if d.PatternKey != "" {
			source += " (" + d.PatternKey + ")"
		}
		rows = append(rows, []string{
			shortenPath(d.File.Path, 60),
			formatBytes(d.File.Size),
			formatConfidence(d.Confidence),
			string(d.Tier),
			string(d.Action),
			paint(string(method), colorFor(method), colorize),
			source,
		})
	}
	return renderTable(
		[]string{"File", "Size", "Confidence", "Tier", "Action", "Route", "Source"},
		rows,
		1, 2,
	)
}

func summarizeMethods(decisions []decision.Decision, router *executor.Router) string {
	counts := map[executor.Method]int{}
	for _, d := range decisions {
		counts[router.MethodFor(d.Confidence)]++
	}
	parts := []string{
		fmt.Sprintf("%d automatic", counts[executor.MethodAutomatic]),
		fmt.Sprintf("%d for review", counts[executor.MethodManualReview]),
		fmt.Sprintf("%d skipped", counts[executor.MethodSkipped]),
	}
	return fmt.Sprintf("%d files: %s", len(decisions), strings.Join(parts, ", "))
}

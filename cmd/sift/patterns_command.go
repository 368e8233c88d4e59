package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sift/internal/patterns"
	"sift/internal/risk"
)

func newPatternsCommand(ctx *commandContext) *cobra.Command {
	patternsCmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and share learned patterns",
	}

	patternsCmd.AddCommand(newPatternsListCommand(ctx))
	patternsCmd.AddCommand(newPatternsStatsCommand(ctx))
	patternsCmd.AddCommand(newPatternsExportCommand(ctx))
	patternsCmd.AddCommand(newPatternsImportCommand(ctx))
	patternsCmd.AddCommand(newPatternsForgetCommand(ctx))

	return patternsCmd
}

func newPatternsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			learned := stack.Memory.Patterns()
			if ctx.JSONMode() {
				return writeJSON(cmd, learned)
			}
			out := cmd.OutOrStdout()
			if len(learned) == 0 {
				fmt.Fprintln(out, "No patterns learned yet")
				return nil
			}
			rows := make([][]string, 0, len(learned))
			for _, p := range learned {
				dest := p.Destination
				if dest == "" {
					dest = "-"
				}
				rows = append(rows, []string{
					p.Key,
					string(p.Action),
					strconv.Itoa(p.Count),
					formatConfidence(p.Confidence),
					formatConfidence(stack.Memory.Effective(p)),
					dest,
					humanize.Time(p.LastUpdated),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Pattern", "Action", "Count", "Confidence", "Effective", "Destination", "Updated"},
				rows,
				2, 3, 4,
			))
			return nil
		},
	}
}

func newPatternsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize learned state",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			stats := stack.Memory.Stats()
			if ctx.JSONMode() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Patterns:           %d\n", stats.PatternCount)
			fmt.Fprintf(out, "Average confidence: %s\n", formatConfidence(stats.AverageConfidence))
			fmt.Fprintf(out, "Corrections:        %d\n", stats.TotalCorrections)
			if stats.MostCommonAction != "" {
				fmt.Fprintf(out, "Most corrected to:  %s\n", stats.MostCommonAction)
			}
			fmt.Fprintf(out, "Feedback:           %d (%d accepted)\n", stats.TotalFeedback, stats.AcceptedFeedback)
			actions := make([]risk.Action, 0, len(stats.CorrectionsByAction))
			for action := range stats.CorrectionsByAction {
				actions = append(actions, action)
			}
			sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
			for _, action := range actions {
				fmt.Fprintf(out, "  %-18s %d\n", string(action)+":", stats.CorrectionsByAction[action])
			}
			return nil
		},
	}
}

func parseFormat(value, path string) (patterns.Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		if path == "" || path == "-" {
			return patterns.FormatJSON, nil
		}
		return patterns.FormatFromPath(path), nil
	case "json":
		return patterns.FormatJSON, nil
	case "yaml", "yml":
		return patterns.FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", value)
	}
}

func newPatternsExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write patterns and corrections to a file (or stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			format, err := parseFormat(formatFlag, target)
			if err != nil {
				return err
			}
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			if target == "" || target == "-" {
				return stack.Memory.Export(cmd.OutOrStdout(), format)
			}
			f, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			if err := stack.Memory.Export(f, format); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pattern(s) to %s\n", len(stack.Memory.Patterns()), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "json or yaml (default: from the file extension)")
	return cmd
}

func newPatternsImportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge patterns from an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			format, err := parseFormat(formatFlag, source)
			if err != nil {
				return err
			}
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if source != "-" {
				f, err := os.Open(source)
				if err != nil {
					return fmt.Errorf("open %s: %w", source, err)
				}
				defer f.Close()
				r = f
			}
			n, err := stack.Memory.Import(r, format)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"imported": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pattern(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "json or yaml (default: from the file extension)")
	return cmd
}

func newPatternsForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <pattern>",
		Short: "Remove a learned pattern by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			if err := stack.Memory.Forget(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
			return nil
		},
	}
}

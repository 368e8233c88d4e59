package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/logging"
	"sift/internal/patterns"
	"sift/internal/risk"
	"sift/internal/scan"
)

func parseActionArg(value string) (risk.Action, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	action, ok := risk.ParseAction(normalized)
	if !ok {
		return "", fmt.Errorf("unknown action %q", value)
	}
	return action, nil
}

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	var original string
	var reason string

	cmd := &cobra.Command{
		Use:   "correct <file> <action>",
		Short: "Teach sift the right action for a file",
		Long: "Records a correction. Files with the same name shape are recommended the\n" +
			"corrected action from now on. When --original is omitted the current\n" +
			"recommendation for the file is used.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			corrected, err := parseActionArg(args[1])
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}

			var previous risk.Action
			if strings.TrimSpace(original) != "" {
				if previous, err = parseActionArg(original); err != nil {
					return err
				}
			} else {
				previous = stack.Combiner.Decide(scan.Describe(path)).Action
			}

			learned, err := stack.Memory.RecordCorrection(path, previous, corrected, reason)
			if err != nil {
				return err
			}
			if stack.Journal != nil {
				entry := patterns.Correction{File: path, Original: previous, Corrected: corrected, Reason: reason}
				if history := stack.Memory.Corrections(); len(history) > 0 {
					entry = history[len(history)-1]
				}
				if err := stack.Journal.RecordCorrection(cmd.Context(), entry); err != nil {
					warnJournal(ctx, "correction", err)
				}
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, learned)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Learned %s -> %s (seen %d time(s), confidence %s)\n",
				learned.Key, learned.Action, learned.Count, formatConfidence(learned.Confidence))
			return nil
		},
	}

	cmd.Flags().StringVar(&original, "original", "", "Action sift recommended (defaults to the current recommendation)")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the recommendation was wrong")
	return cmd
}

func newFeedbackCommand(ctx *commandContext) *cobra.Command {
	var accepted bool

	cmd := &cobra.Command{
		Use:   "feedback <file> <suggested> <actual>",
		Short: "Report whether a suggested destination was right",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			stack, err := ctx.components(cmd.Context(), true)
			if err != nil {
				return err
			}
			adjusted, changed, err := stack.Memory.RecordFeedback(path, args[1], args[2], accepted)
			if err != nil {
				return err
			}
			if stack.Journal != nil {
				entry := patterns.Feedback{File: path, Suggested: args[1], Actual: args[2], Accepted: accepted}
				if recent := stack.Memory.RecentFeedback(1); len(recent) == 1 {
					entry = recent[0]
				}
				if err := stack.Journal.RecordFeedback(cmd.Context(), entry); err != nil {
					warnJournal(ctx, "feedback", err)
				}
			}

			if ctx.JSONMode() {
				payload := map[string]any{"accepted": accepted, "adjusted": changed}
				if changed {
					payload["pattern"] = adjusted
				}
				return writeJSON(cmd, payload)
			}
			out := cmd.OutOrStdout()
			switch {
			case accepted:
				fmt.Fprintln(out, "Feedback recorded")
			case changed:
				fmt.Fprintf(out, "Pattern %s now points at %s (count %d)\n", adjusted.Key, adjusted.Destination, adjusted.Count)
			default:
				fmt.Fprintln(out, "Feedback recorded; no pattern matched")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&accepted, "accepted", false, "The suggestion was used as-is")
	return cmd
}

// warnJournal logs a journal write failure. The pattern store is the source
// of truth, so the command still succeeds.
func warnJournal(ctx *commandContext, what string, err error) {
	logger, lerr := ctx.loggerFor()
	if lerr != nil {
		return
	}
	logger.Warn("journal write failed",
		logging.String("record", what),
		logging.Error(err),
		logging.String(logging.FieldEventType, "journal_write_failed"),
		logging.String(logging.FieldErrorHint, "check the data directory is writable"),
	)
}

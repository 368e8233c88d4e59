package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/notifications"
)

func newUndoCommand(ctx *commandContext) *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "undo <id>...",
		Short: "Reverse recorded actions by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			stack, err := ctx.components(cmd.Context(), false)
			if err != nil {
				return err
			}
			result, err := stack.Ledger.Undo(ids, preview)
			if err != nil {
				return err
			}

			if !preview && len(result.Undone) > 0 {
				if err := stack.Notifier.Publish(cmd.Context(), notifications.EventUndoCompleted, notifications.Payload{
					"undone": len(result.Undone),
					"failed": len(result.Failed),
				}); err != nil {
					logger, _ := ctx.loggerFor()
					if logger != nil {
						logger.Warn("undo notification failed",
							logging.Error(err),
							logging.String(logging.FieldEventType, "notification_failed"),
							logging.String(logging.FieldErrorHint, "check ntfy_topic or slack_webhook_url"),
						)
					}
				}
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, undoJSON(result))
			}

			out := cmd.OutOrStdout()
			verb := "Undone"
			if preview {
				verb = "Would undo"
			}
			for _, o := range result.Undone {
				fmt.Fprintf(out, "%s #%d: %s\n", verb, o.ID, describeOutcome(o))
			}
			for _, o := range result.Failed {
				fmt.Fprintf(out, "Failed #%d: %s\n", o.ID, o.Reason)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d undo(s) failed", len(result.Failed), len(ids))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Report what would be reversed without changing anything")
	return cmd
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		for part := range strings.SplitSeq(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id < 0 {
				return nil, fmt.Errorf("invalid action id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no action ids given")
	}
	return ids, nil
}

func describeOutcome(o ledger.Outcome) string {
	switch o.Type {
	case ledger.ActionMove:
		return fmt.Sprintf("%s -> %s", o.Destination, o.Source)
	case ledger.ActionCopy:
		return fmt.Sprintf("remove copy %s", o.Destination)
	default:
		return fmt.Sprintf("restore %s", o.Source)
	}
}

// undoJSON flattens outcomes so errors survive encoding.
func undoJSON(result ledger.UndoResult) map[string]any {
	failed := make([]map[string]any, 0, len(result.Failed))
	for _, o := range result.Failed {
		failed = append(failed, map[string]any{"id": o.ID, "reason": o.Reason})
	}
	return map[string]any{
		"undone": result.Undone,
		"failed": failed,
	}
}

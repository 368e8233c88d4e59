package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var channels []string
			if cfg.Notifications.NtfyTopic != "" {
				channels = append(channels, "ntfy")
			}
			if cfg.Notifications.SlackWebhookURL != "" {
				channels = append(channels, "slack")
			}
			out := cmd.OutOrStdout()
			if len(channels) == 0 {
				fmt.Fprintln(out, "Notifications not configured (set ntfy_topic or slack_webhook_url)")
				return nil
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(out, "Test notification sent via %s\n", strings.Join(channels, ", "))
			return nil
		},
	}
}

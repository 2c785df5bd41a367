package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dropcast/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(stdout, "Notifications are disabled (set notifications.ntfy_topic or export DROPCAST_NTFY_TOPIC)")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(stdout, "Test notification sent")
			return nil
		},
	}
}

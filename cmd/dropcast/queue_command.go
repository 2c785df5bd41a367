package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"dropcast/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List files waiting to be posted, in posting order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Queue(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, queueSummary(resp.Queue))
				if len(resp.Items) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"#", "Name", "Kind", "Added", "Caption"},
					queueRows(resp.Items),
					[]text.Align{text.AlignRight, text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the queue as JSON")
	return cmd
}

func queueSummary(q api.QueueStatus) string {
	summary := fmt.Sprintf("%d queued, next post in %s", q.Length, formatSeconds(q.CooldownSeconds))
	if q.Freeze != nil {
		summary += fmt.Sprintf(" (frozen: %s)", q.Freeze.Reason)
	}
	if q.ConsecutiveFailures > 0 {
		summary += fmt.Sprintf(", %d consecutive failures", q.ConsecutiveFailures)
	}
	return summary
}

func queueRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		caption := item.Caption
		if caption == "" {
			caption = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Position),
			item.Name,
			item.Kind,
			formatTimestamp(item.AddedAt),
			caption,
		})
	}
	return rows
}

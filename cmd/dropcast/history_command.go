package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"dropcast/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent publish attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if !resp.Enabled {
					fmt.Fprintln(stdout, "History is disabled (set history.enabled = true)")
					return nil
				}
				if len(resp.Attempts) == 0 {
					fmt.Fprintln(stdout, "No publish attempts recorded")
					return nil
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"ID", "Started", "Name", "Outcome", "Duration", "Detail"},
					historyRows(resp.Attempts),
					[]text.Align{text.AlignRight, text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignRight, text.AlignLeft},
				))
				fmt.Fprintln(stdout, outcomeSummary(resp.Counts))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of attempts to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print attempts as JSON")
	return cmd
}

func historyRows(attempts []api.Attempt) [][]string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		detail := a.Detail
		if detail == "" {
			detail = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			formatTimestamp(a.StartedAt),
			a.Name,
			a.Outcome,
			(time.Duration(a.DurationMillis) * time.Millisecond).Round(10 * time.Millisecond).String(),
			detail,
		})
	}
	return rows
}

// outcomeSummary renders totals as "failed 1, posted 12" in stable order.
func outcomeSummary(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return "Totals: " + strings.Join(parts, ", ")
}

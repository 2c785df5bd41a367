package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dropcast/internal/api"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		lines     int
		component string
		lane      string
		level     string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log records",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := api.LogQuery{
				Limit:     lines,
				Tail:      true,
				Component: component,
				Lane:      lane,
				Level:     level,
			}
			return ctx.withClient(func(client *api.Client) error {
				return streamLogs(cmd.Context(), client, query, follow, func(evt api.LogEvent) error {
					if asJSON {
						return writeJSON(cmd, evt)
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), formatLogEvent(evt))
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new records")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent records to show first")
	cmd.Flags().StringVar(&component, "component", "", "Only show records from this component")
	cmd.Flags().StringVar(&lane, "lane", "", "Only show records from this lane (ingest, publish)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, log, success, warn, error)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per record")
	return cmd
}

// streamLogs prints the tail and, when follow is set, long-polls for newer
// records until ctx ends.
func streamLogs(ctx context.Context, client *api.Client, query api.LogQuery, follow bool, emit func(api.LogEvent) error) error {
	for {
		resp, err := client.Logs(ctx, query)
		if err != nil {
			if follow && errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}
		for _, evt := range resp.Events {
			if err := emit(evt); err != nil {
				return err
			}
		}
		if !follow {
			return nil
		}
		if resp.Next > query.Since {
			query.Since = resp.Next
		}
		query.Tail = false
		query.Follow = true
		query.Limit = 0
	}
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(formatTimestamp(evt.Timestamp))
	fmt.Fprintf(&b, " %-7s", strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	if evt.Lane != "" {
		fmt.Fprintf(&b, " lane=%s", evt.Lane)
	}
	if evt.ItemPath != "" {
		fmt.Fprintf(&b, " item=%s", evt.ItemPath)
	}
	writeFields(&b, evt.Fields)
	return b.String()
}

func writeFields(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%s", k, fields[k])
	}
}

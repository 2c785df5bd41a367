package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dropcast/internal/api"
	"dropcast/internal/config"
	"dropcast/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, publishing and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			var (
				status  api.DaemonStatus
				running bool
			)
			err := ctx.withClient(func(client *api.Client) error {
				var err error
				status, err = client.Status(cmd.Context())
				return err
			})
			switch {
			case err == nil:
				running = status.Running
			case errors.Is(err, errDaemonUnavailable):
				// Fall back to local checks below.
			default:
				return err
			}

			if asJSON {
				if !running {
					status = api.DaemonStatus{Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cfg))}
				}
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			printSection(stdout, "Daemon", colorize, daemonLines(status, running, colorize))
			if running {
				printSection(stdout, "Publishing", colorize, publishingLines(status.Workflow, colorize))
			}
			deps := status.Dependencies
			if !running {
				deps = api.FromDependencies(preflight.CheckSystemDeps(cfg))
			}
			printSection(stdout, "Dependencies", colorize, dependencyLines(deps, colorize))
			printSection(stdout, "Paths", colorize, pathLines(cfg, colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func daemonLines(status api.DaemonStatus, running bool, colorize bool) []string {
	if !running {
		return []string{renderStatusLine("Daemon", statusWarn, "Not running", colorize)}
	}
	lines := []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
		renderStatusLine("Started", statusInfo, formatTimestamp(status.StartedAt), colorize),
	}
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	if status.Logging != nil && status.Logging.DestinationErrors > 0 {
		lines = append(lines, renderStatusLine("Log sink", statusWarn,
			fmt.Sprintf("%d destination errors", status.Logging.DestinationErrors), colorize))
	}
	return lines
}

func publishingLines(wf api.WorkflowStatus, colorize bool) []string {
	login := renderStatusLine("Provider", statusWarn, wf.Provider+" (not logged in)", colorize)
	if wf.LoggedIn {
		login = renderStatusLine("Provider", statusOK, wf.Provider, colorize)
	}
	lines := []string{
		login,
		renderStatusLine("State", statusInfo, wf.PublishState, colorize),
		renderStatusLine("Queue", statusInfo, fmt.Sprintf("%d waiting", wf.Queue.Length), colorize),
		renderStatusLine("Next post", statusInfo, formatSeconds(wf.Queue.CooldownSeconds), colorize),
		renderStatusLine("Counters", statusInfo,
			fmt.Sprintf("%d ingested, %d rejected, %d posted", wf.Ingested, wf.Rejected, wf.Posted), colorize),
	}
	if wf.Queue.Freeze != nil {
		lines = append(lines, renderStatusLine("Frozen", statusWarn,
			fmt.Sprintf("%s (%s left)", wf.Queue.Freeze.Reason, formatSeconds(wf.Queue.Freeze.RemainingSeconds)), colorize))
	}
	if wf.Queue.ConsecutiveFailures > 0 {
		lines = append(lines, renderStatusLine("Failures", statusWarn,
			fmt.Sprintf("%d consecutive", wf.Queue.ConsecutiveFailures), colorize))
	}
	if wf.LastPosted != nil {
		lines = append(lines, renderStatusLine("Last post", statusInfo,
			fmt.Sprintf("%s at %s", wf.LastPosted.Name, formatTimestamp(wf.LastPostedAt)), colorize))
	}
	for _, lane := range wf.Lanes {
		if lane.Stopped {
			lines = append(lines, renderStatusLine("Lane "+lane.Name, statusError, "Stopped: "+lane.StopCause, colorize))
		}
	}
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
	}
	return lines
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	if len(deps) == 0 {
		return []string{renderStatusLine("Dependencies", statusInfo, "None checked", colorize)}
	}
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		switch {
		case dep.Available:
			lines = append(lines, renderStatusLine(dep.Name, statusOK, dep.Command, colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(dep.Name, statusWarn, "Optional: "+dep.Detail, colorize))
		default:
			lines = append(lines, renderStatusLine(dep.Name, statusError, dep.Detail, colorize))
		}
	}
	return lines
}

func pathLines(cfg *config.Config, colorize bool) []string {
	if cfg == nil {
		return nil
	}
	entries := []struct{ label, path string }{
		{"Drop", cfg.Paths.DropDir},
		{"Sorted images", cfg.Paths.SortedImageDir},
		{"Sorted videos", cfg.Paths.SortedVideoDir},
		{"Discard", cfg.Paths.DiscardDir},
		{"Logs", cfg.Paths.LogDir},
	}
	if cfg.Paths.PostedDir != "" {
		entries = append(entries, struct{ label, path string }{"Posted", cfg.Paths.PostedDir})
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		result := preflight.CheckDirectoryAccess(e.label, e.path)
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(e.label, kind, result.Detail, colorize))
	}
	return lines
}

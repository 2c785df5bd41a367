package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dropcast/internal/config"
	"dropcast/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check %s: %w", target, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set provider and [mastodon] credentials (or export DROPCAST_MASTODON_ACCESS_TOKEN) before posting for real.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// initTarget expands an explicit --path or falls back to the default
// config location.
func initTarget(flagValue string) (string, error) {
	if flagValue = strings.TrimSpace(flagValue); flagValue == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(flagValue)
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and check directories and tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}

			var lines []string
			results := preflight.RunAll(cmd.Context(), cfg)
			if cfg.Publish.Provider != "mastodon" {
				results = append(results, preflight.CheckProviderFromConfig(cmd.Context(), cfg))
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			printSection(out, "Checks", colorize, lines)

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

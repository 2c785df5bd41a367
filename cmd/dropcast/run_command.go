package main

import (
	"github.com/spf13/cobra"

	"dropcast/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel   string
		debugLevel int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				DebugLevel: debugLevel,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
				Stdin:      cmd.InOrStdin(),
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().IntVar(&debugLevel, "debug-level", 0, "Override logging.debug_level")
	return cmd
}

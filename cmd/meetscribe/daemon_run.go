package main

import (
	"github.com/spf13/cobra"

	"meetscribe/internal/daemonrun"
)

// newDaemonRunCommand is the foreground entry point `meetscribe start` launches.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:         "daemon",
		Short:       "Run meetscribed in the foreground (internal)",
		Hidden:      true,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log records")
	return cmd
}

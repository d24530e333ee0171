package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check component readiness through the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := ctx.apiClient().Health(cmd.Context())
			if err != nil {
				return daemonUnreachable(ctx.apiBaseURL(), err)
			}
			if jsonOutput {
				if err := writeJSON(cmd, health); err != nil {
					return err
				}
			} else {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Components", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range componentLines(health.Components, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}
			if !health.Ready {
				return errors.New("one or more components are not ready")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

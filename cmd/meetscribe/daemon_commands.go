package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meetscribe/internal/api"
	"meetscribe/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start meetscribed in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateDaemon(); err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.apiClient(), cfg, exe, daemonLaunchOptions(ctx, startLogLevel), startWaitTimeout)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			default:
				fmt.Fprintf(stdout, "Daemon started (%s)\n", ctx.apiBaseURL())
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop meetscribed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon (pid %d) did not exit in time and was killed\n", result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and task status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.apiClient(), ctx.configValue())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, daemonStatusLine(snapshot, colorize))
			if snapshot.Health != nil {
				for _, line := range componentLines(snapshot.Health.Components, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Tasks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snapshot.Counts == nil {
				fmt.Fprintln(stdout, "Task database unavailable")
				return nil
			}
			rows := buildCountRows(snapshot.Counts, false)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No tasks recorded")
				return nil
			}
			fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func daemonStatusLine(snapshot *daemonctl.Snapshot, colorize bool) string {
	switch {
	case snapshot.Health != nil && snapshot.Health.Ready:
		return renderStatusLine("meetscribed", statusOK, runningDetail(snapshot.PID), colorize)
	case snapshot.Health != nil:
		return renderStatusLine("meetscribed", statusWarn, runningDetail(snapshot.PID)+", not ready", colorize)
	case snapshot.Running:
		return renderStatusLine("meetscribed", statusWarn, "process alive (pid "+strconv.Itoa(snapshot.PID)+") but API unreachable", colorize)
	default:
		return renderStatusLine("meetscribed", statusError, "not running", colorize)
	}
}

func runningDetail(pid int) string {
	if pid > 0 {
		return "running (pid " + strconv.Itoa(pid) + ")"
	}
	return "running"
}

func componentLines(components []api.StageHealth, colorize bool) []string {
	sorted := append([]api.StageHealth(nil), components...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	lines := make([]string, 0, len(sorted))
	for _, component := range sorted {
		kind := statusOK
		detail := strings.TrimSpace(component.Detail)
		if !component.Ready {
			kind = statusError
			if detail == "" {
				detail = "not ready"
			}
		}
		if detail == "" {
			detail = "ready"
		}
		lines = append(lines, renderStatusLine(component.Name, kind, detail, colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: strings.TrimSpace(logLevel)}
	if ctx.configPath != "" {
		opts.ConfigPath = ctx.configPath
	} else if ctx.configFlag != nil {
		opts.ConfigPath = strings.TrimSpace(*ctx.configFlag)
	}
	return opts
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"meetscribe/internal/api"
	"meetscribe/internal/summary"
	"meetscribe/internal/taskaccess"
	"meetscribe/internal/tasks"
	"meetscribe/internal/workflow"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect pipeline tasks",
	}
	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksShowCommand(ctx))
	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := normalizeStatusFilters(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(session taskaccess.Session) error {
				items, err := session.Access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.SortTasksNewestFirst(items))
				}
				stdout := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(stdout, "No tasks found")
					return nil
				}
				headers := []string{"ID", "File", "Status", "Meeting", "Created"}
				fmt.Fprintln(stdout, renderTable(headers, buildTaskListRows(items), nil))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func normalizeStatusFilters(values []string) ([]string, error) {
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		status, ok := tasks.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, string(status))
	}
	return out, nil
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var withTranscript bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task with its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withAccess(cmd.Context(), func(session taskaccess.Session) error {
				item, err := session.Access.Describe(cmd.Context(), id)
				if err != nil && !errors.Is(err, tasks.ErrNotFound) {
					return err
				}
				if item == nil {
					return fmt.Errorf("task %s not found", id)
				}
				if !withTranscript {
					item.Transcript = ""
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				stdout := cmd.OutOrStdout()
				printTaskDetail(stdout, item, withTranscript, shouldColorize(stdout))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	cmd.Flags().BoolVar(&withTranscript, "transcript", false, "Include the full transcript")
	return cmd
}

func printTaskDetail(w io.Writer, item *api.Task, withTranscript, colorize bool) {
	statusColor := statusStyles[taskStatusKind(item.Status)].color
	fields := [][2]string{
		{"ID", item.ID},
		{"Status", paint(formatStatusLabel(item.Status), statusColor, colorize)},
		{"File", fallbackText(item.OriginalFileName, "(unnamed)")},
		{"Meeting date", fallbackText(item.MeetingDate, "-")},
		{"Consultant", fallbackText(item.ConsultantName, "-")},
		{"Client", fallbackText(item.ClientName, "-")},
		{"Storage path", fallbackText(item.StoragePath, "-")},
		{"Created", formatDisplayTime(item.CreatedAt)},
		{"Updated", formatDisplayTime(item.UpdatedAt)},
	}
	if item.ProcessedAt != "" {
		fields = append(fields, [2]string{"Processed", formatDisplayTime(item.ProcessedAt)})
	}
	if item.NotionPageURL != "" {
		fields = append(fields, [2]string{"Notion page", item.NotionPageURL})
	}
	if item.ErrorMessage != "" {
		fields = append(fields, [2]string{"Failed step", fallbackText(item.FailedStep, "-")})
		fields = append(fields, [2]string{"Error", item.ErrorMessage})
	}
	for _, field := range fields {
		fmt.Fprintf(w, "%-14s %s\n", field[0]+":", field[1])
	}

	if len(item.Summary) > 0 {
		fmt.Fprintln(w)
		if parsed, err := summary.Parse(string(item.Summary)); err == nil {
			fmt.Fprintln(w, parsed.Text())
		} else {
			fmt.Fprintln(w, string(item.Summary))
		}
	}
	if withTranscript && item.Transcript != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Transcript:")
		fmt.Fprintln(w, item.Transcript)
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Resume a failed task from its last checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withAccess(cmd.Context(), func(session taskaccess.Session) error {
				resp, err := session.Access.Resume(cmd.Context(), id)
				stdout := cmd.OutOrStdout()
				switch {
				case errors.Is(err, workflow.ErrAlreadyComplete):
					fmt.Fprintf(stdout, "Task %s is already complete\n", id)
					return nil
				case errors.Is(err, tasks.ErrNotFound):
					return fmt.Errorf("task %s not found", id)
				case err != nil:
					return err
				}
				fmt.Fprintf(stdout, "Task %s resumed (%s)\n", resp.TaskID, formatStatusLabel(resp.Status))
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(session taskaccess.Session) error {
				counts, err := session.Access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.StatsResponse{Counts: counts})
				}
				rows := buildCountRows(counts, true)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

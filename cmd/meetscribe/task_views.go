package main

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"meetscribe/internal/api"
	"meetscribe/internal/tasks"
)

// buildCountRows lists known statuses in pipeline order, then anything unknown.
func buildCountRows(counts map[string]int, includeZero bool) [][]string {
	rows := make([][]string, 0, len(counts))
	seen := make(map[string]struct{}, len(counts))
	for _, status := range tasks.AllStatuses() {
		key := string(status)
		seen[key] = struct{}{}
		count := counts[key]
		if count == 0 && !includeZero {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(count)})
	}
	var extra []string
	for key := range counts {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(counts[key])})
	}
	return rows
}

func buildTaskListRows(items []api.Task) [][]string {
	sorted := api.SortTasksNewestFirst(items)
	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			item.ID,
			fallbackText(item.OriginalFileName, "(unnamed)"),
			formatStatusLabel(item.Status),
			fallbackText(item.MeetingDate, "-"),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(strings.ToLower(status), "_")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	parsed := api.ParseTaskTime(value)
	if parsed.IsZero() {
		return fallbackText(value, "-")
	}
	return parsed.Local().Format(time.DateTime)
}

func fallbackText(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

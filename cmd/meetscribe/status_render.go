package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"meetscribe/internal/tasks"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const statusLabelWidth = 18

// renderStatusLine formats "  label:   [KIND] message", coloured as a whole on a terminal.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", style.label)
	if message != "" {
		line += " " + message
	}
	return paint(line, style.color, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(line))
	color := statusStyles[statusInfo].color
	return []string{paint(line, color, colorize), paint(rule, color, colorize)}
}

// taskStatusKind classifies a task status for display: failures are errors,
// partial publishes warnings, finished tasks OK, anything in flight info.
func taskStatusKind(status string) statusKind {
	parsed, ok := tasks.ParseStatus(status)
	switch {
	case !ok:
		return statusWarn
	case parsed.IsFailure():
		return statusError
	case parsed == tasks.StatusCompletedWithPublishErrors:
		return statusWarn
	case parsed.IsComplete():
		return statusOK
	default:
		return statusInfo
	}
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Package logging assembles structured slog loggers and formatting helpers used
// across meetscribe services.
//
// It owns the configurable console/JSON handlers, tees every record into a JSON
// log file when a log directory is configured, and exposes context-aware helpers
// so stage code tags log lines with task IDs, stages, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot fail.
package logging

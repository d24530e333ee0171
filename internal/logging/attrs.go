package logging

import (
	"log/slog"
	"time"

	"meetscribe/internal/services"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error attaches err under "error". A nil error is recorded literally so a
// missing cause is visible in the log line.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// ErrorKind records the services marker classification of err.
func ErrorKind(err error) Attr {
	return slog.String(FieldErrorKind, services.Details(err).Kind)
}

// Step names the pipeline step a log line belongs to (download, transcribe, ...).
func Step(step string) Attr { return slog.String(FieldStep, step) }

// Status records a task status.
func Status[S ~string](status S) Attr { return slog.String(FieldStatus, string(status)) }

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with component; a nil logger becomes a no-op.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning, filling event_type and a generic error_hint
// when the caller did not supply them.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger != nil {
		logger.Warn(msg, toArgs(withEventDefaults(attrs, eventType))...)
	}
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger != nil {
		logger.Error(msg, toArgs(withEventDefaults(attrs, eventType))...)
	}
}

func withEventDefaults(attrs []Attr, eventType string) []Attr {
	var hasEvent, hasHint bool
	for _, attr := range attrs {
		switch attr.Key {
		case FieldEventType:
			hasEvent = true
		case FieldErrorHint:
			hasHint = true
		}
	}
	if !hasEvent {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasHint {
		attrs = append(attrs, String(FieldErrorHint, "inspect the task with `meetscribe tasks show`"))
	}
	return attrs
}

func toArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

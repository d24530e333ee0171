package services

import "context"

// contextKey values are private so only this package can set pipeline scope.
type contextKey int

const (
	taskIDKey contextKey = iota
	stageKey
	requestIDKey
)

// WithTaskID scopes ctx to one task. Every log line and error produced under
// it carries the id.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withValue(ctx, taskIDKey, id)
}

func TaskIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, taskIDKey)
}

// WithStage records which stage (ingress, transfer, process) is running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, stageKey)
}

// WithRequestID attaches the HTTP request or asynq task id that started the work.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, requestIDKey)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, _ := ctx.Value(key).(string)
	return value, value != ""
}

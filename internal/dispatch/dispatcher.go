package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
	"meetscribe/internal/stage"
)

// Dispatcher sends stage triggers.
type Dispatcher interface {
	DispatchTransfer(ctx context.Context, payload TransferPayload) error
	DispatchProcess(ctx context.Context, payload ProcessPayload) error
	HealthCheck(ctx context.Context) stage.Health
	Close() error
}

// New builds the dispatcher selected by dispatch.mode.
func New(cfg *config.Config, logger *slog.Logger) (Dispatcher, error) {
	logger = logging.NewComponentLogger(logger, "dispatch")
	switch strings.ToLower(strings.TrimSpace(cfg.Dispatch.Mode)) {
	case config.DispatchModeAsynq:
		return NewAsynq(cfg.Dispatch, logger), nil
	case config.DispatchModeHTTP:
		return NewHTTP(cfg.TriggerBaseURL(), cfg.Dispatch.TriggerToken, defaultTriggerTimeout, logger), nil
	case config.DispatchModeNone:
		return NewNone(logger), nil
	default:
		return nil, fmt.Errorf("dispatch: unknown mode %q", cfg.Dispatch.Mode)
	}
}

func taskTimeout(cfg config.Dispatch) time.Duration {
	if cfg.TaskTimeoutSeconds > 0 {
		return time.Duration(cfg.TaskTimeoutSeconds) * time.Second
	}
	return time.Hour
}

// None drops triggers; stages advance only through manual resume.
type None struct {
	logger *slog.Logger
}

// NewNone builds a dispatcher that only logs.
func NewNone(logger *slog.Logger) *None {
	return &None{logger: logging.NewComponentLogger(logger, "dispatch")}
}

func (n *None) DispatchTransfer(ctx context.Context, payload TransferPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	logging.WithContext(ctx, n.logger).Info("transfer trigger not dispatched (mode none)",
		logging.String(logging.FieldTaskID, payload.TaskID),
		logging.String(logging.FieldEventType, "dispatch_skipped"),
	)
	return nil
}

func (n *None) DispatchProcess(ctx context.Context, payload ProcessPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	logging.WithContext(ctx, n.logger).Info("process trigger not dispatched (mode none)",
		logging.String(logging.FieldTaskID, payload.TaskID),
		logging.String(logging.FieldEventType, "dispatch_skipped"),
	)
	return nil
}

func (n *None) HealthCheck(context.Context) stage.Health {
	return stage.Health{Name: stage.ComponentDispatch, Ready: true, Detail: "mode none"}
}

func (n *None) Close() error { return nil }

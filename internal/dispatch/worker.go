package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
	"meetscribe/internal/services"
)

// TransferRunner executes the transfer stage.
type TransferRunner interface {
	Transfer(ctx context.Context, payload TransferPayload) error
}

// ProcessRunner executes the processing orchestrator.
type ProcessRunner interface {
	Process(ctx context.Context, payload ProcessPayload) error
}

// Worker consumes asynq triggers and runs the matching stage.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker registers stage handlers on an asynq server.
func NewWorker(cfg config.Dispatch, transfer TransferRunner, process ProcessRunner, logger *slog.Logger) *Worker {
	logger = logging.NewComponentLogger(logger, "worker")
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	server := asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      slogAdapter{logger: logger},
		LogLevel:    asynq.WarnLevel,
	})
	w := &Worker{server: server, mux: asynq.NewServeMux(), logger: logger}
	w.mux.HandleFunc(TypeTransfer, func(ctx context.Context, t *asynq.Task) error {
		var payload TransferPayload
		if err := decodePayload(t, &payload); err != nil {
			return err
		}
		ctx = services.WithTaskID(ctx, payload.TaskID)
		return transfer.Transfer(ctx, payload)
	})
	w.mux.HandleFunc(TypeProcess, func(ctx context.Context, t *asynq.Task) error {
		var payload ProcessPayload
		if err := decodePayload(t, &payload); err != nil {
			return err
		}
		ctx = services.WithTaskID(ctx, payload.TaskID)
		return process.Process(ctx, payload)
	})
	return w
}

func decodePayload(t *asynq.Task, target any) error {
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// Start begins consuming in the background.
func (w *Worker) Start() error {
	w.logger.Info("worker starting")
	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight handlers and stops the server.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("worker stopped")
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) { a.logger.Error(fmt.Sprint(args...), logging.Bool("fatal", true)) }

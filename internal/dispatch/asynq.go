package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
	"meetscribe/internal/stage"
)

// RedisOpt converts the [dispatch] section into asynq connection options.
func RedisOpt(cfg config.Dispatch) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// Asynq enqueues triggers onto a Redis-backed asynq queue.
type Asynq struct {
	client  *asynq.Client
	redis   *redis.Client
	queue   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAsynq connects a dispatcher to the configured Redis.
func NewAsynq(cfg config.Dispatch, logger *slog.Logger) *Asynq {
	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	return &Asynq{
		client: asynq.NewClient(RedisOpt(cfg)),
		redis: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		queue:   queue,
		timeout: taskTimeout(cfg),
		logger:  logging.NewComponentLogger(logger, "dispatch"),
	}
}

func (a *Asynq) DispatchTransfer(ctx context.Context, payload TransferPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	return a.enqueue(ctx, TypeTransfer, triggerID("transfer", payload.TaskID, payload.Attempt), payload.TaskID, payload)
}

func (a *Asynq) DispatchProcess(ctx context.Context, payload ProcessPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	return a.enqueue(ctx, TypeProcess, triggerID("process", payload.TaskID, payload.Attempt), payload.TaskID, payload)
}

func (a *Asynq) enqueue(ctx context.Context, taskType, id, taskID string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatch: encode %s payload: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, encoded, asynq.MaxRetry(0), asynq.Timeout(a.timeout))
	logger := logging.WithContext(ctx, a.logger)
	info, err := a.client.EnqueueContext(ctx, task, asynq.Queue(a.queue), asynq.TaskID(id))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Info("trigger already queued",
			logging.String(logging.FieldTaskID, taskID),
			logging.String("trigger", taskType),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("dispatch: enqueue %s: %w", taskType, err)
	}
	logger.Info("trigger enqueued",
		logging.String(logging.FieldTaskID, taskID),
		logging.String("trigger", taskType),
		logging.String("queue", info.Queue),
		logging.String(logging.FieldEventType, "dispatch_enqueued"),
	)
	return nil
}

// HealthCheck pings Redis.
func (a *Asynq) HealthCheck(ctx context.Context) stage.Health {
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return stage.Unhealthy(stage.ComponentDispatch, "redis: "+err.Error())
	}
	return stage.Healthy(stage.ComponentDispatch)
}

// Close releases the Redis connections.
func (a *Asynq) Close() error {
	return errors.Join(a.client.Close(), a.redis.Close())
}

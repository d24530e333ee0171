package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/meetinginfo"
	"meetscribe/internal/notifications"
	"meetscribe/internal/services"
	"meetscribe/internal/storage"
	"meetscribe/internal/tasks"
)

// Store is the slice of the task store the stage writes.
type Store interface {
	Get(ctx context.Context, id string) (*tasks.Task, error)
	MarkUploaded(ctx context.Context, id, storagePath string) error
	MarkUploadFailed(ctx context.Context, id, message string) error
}

// Source opens the private file download.
type Source interface {
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// ProcessDispatcher chains the processing trigger.
type ProcessDispatcher interface {
	DispatchProcess(ctx context.Context, payload dispatch.ProcessPayload) error
}

// Stage runs transfer triggers.
type Stage struct {
	store      Store
	source     Source
	bucket     storage.Bucket
	dispatcher ProcessDispatcher
	notifier   notifications.Service
	logger     *slog.Logger
}

// New wires the transfer stage.
func New(store Store, source Source, bucket storage.Bucket, dispatcher ProcessDispatcher, notifier notifications.Service, logger *slog.Logger) *Stage {
	return &Stage{
		store:      store,
		source:     source,
		bucket:     bucket,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "transfer"),
	}
}

// Transfer runs one trigger. It returns an error only when the failure could not
// be recorded on the task.
func (s *Stage) Transfer(ctx context.Context, payload dispatch.TransferPayload) error {
	ctx = services.WithStage(ctx, "transfer")
	if payload.TaskID != "" {
		ctx = services.WithTaskID(ctx, payload.TaskID)
	}
	logger := logging.WithContext(ctx, s.logger)

	if strings.TrimSpace(payload.TaskID) == "" {
		err := payload.Validate()
		logging.WarnWithContext(logger, "transfer trigger rejected", "transfer_invalid", logging.Error(err))
		return err
	}
	task, err := s.store.Get(ctx, payload.TaskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", payload.TaskID, err)
	}
	if task == nil {
		err := services.Wrap(services.ErrNotFound, "transfer", "load task", payload.TaskID, nil)
		logging.WarnWithContext(logger, "transfer trigger for unknown task", "transfer_unknown_task", logging.Error(err))
		s.notify(ctx, notifications.Payload{
			TaskID:       payload.TaskID,
			Status:       notifications.StatusUploadFailed,
			ErrorMessage: err.Error(),
		})
		return nil
	}
	if err := payload.Validate(); err != nil {
		return s.fail(ctx, task, "validate", err)
	}

	switch task.Status {
	case tasks.StatusUploadPending:
	case tasks.StatusUploaded:
		if task.StoragePath != "" {
			logger.Info("media already stored; dispatching processing",
				logging.String("storage_path", task.StoragePath),
			)
			return s.dispatchProcess(ctx, task)
		}
		fallthrough
	default:
		logger.Info("transfer skipped",
			logging.Status(task.Status),
			logging.String(logging.FieldEventType, "transfer_skipped"),
		)
		return nil
	}

	key := storage.ObjectKey(task.ID, meetinginfo.Extension(
		firstNonEmpty(payload.Mimetype, task.Mimetype),
		firstNonEmpty(payload.Filetype, task.Filetype),
		firstNonEmpty(payload.OriginalFileName, task.OriginalFileName),
	))
	started := time.Now()
	logger.Info("transfer started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("storage_path", key),
		logging.String("original_file_name", task.OriginalFileName),
	)

	body, expected, err := s.source.Download(ctx, payload.DownloadURL)
	if err != nil {
		return s.fail(ctx, task, "download", err)
	}
	counter := &countingReader{r: body}
	putErr := s.bucket.Put(ctx, key, counter, firstNonEmpty(payload.Mimetype, task.Mimetype))
	_ = body.Close()
	if putErr != nil {
		return s.fail(ctx, task, "store", putErr)
	}
	if expected > 0 && counter.n != expected {
		return s.fail(ctx, task, "store", services.Wrap(services.ErrExternalTool, "transfer", "download",
			fmt.Sprintf("received %d of %d bytes", counter.n, expected), nil))
	}

	if err := s.store.MarkUploaded(ctx, task.ID, key); err != nil {
		return fmt.Errorf("record upload %s: %w", task.ID, err)
	}
	task.Status = tasks.StatusUploaded
	task.StoragePath = key
	logger.Info("transfer completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("storage_path", key),
		logging.Int64("bytes", counter.n),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return s.dispatchProcess(ctx, task)
}

func (s *Stage) dispatchProcess(ctx context.Context, task *tasks.Task) error {
	err := s.dispatcher.DispatchProcess(ctx, dispatch.ProcessPayload{TaskID: task.ID, StoragePath: task.StoragePath})
	if err == nil {
		return nil
	}
	return s.fail(ctx, task, "dispatch", err)
}

// fail records upload_failed and sends the failure notification.
func (s *Stage) fail(ctx context.Context, task *tasks.Task, step string, cause error) error {
	logger := logging.WithContext(ctx, s.logger)
	details := services.Details(cause)
	message := step + ": " + strings.TrimSpace(details.Message)
	logger.Error("transfer failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.ErrorKind(cause),
		logging.Step(step),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "resume the task once the cause is fixed"),
	)
	if err := s.store.MarkUploadFailed(ctx, task.ID, message); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record transfer failure")
		} else {
			logger.Error("failed to persist transfer failure", logging.Error(err))
		}
		return errors.Join(cause, err)
	}
	s.notify(ctx, notifications.Payload{
		TaskID:           task.ID,
		Channel:          task.SourceChannelID,
		Status:           notifications.StatusUploadFailed,
		OriginalFileName: task.OriginalFileName,
		ErrorMessage:     message,
	})
	return nil
}

func (s *Stage) notify(ctx context.Context, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, payload); err != nil {
		logging.WithContext(ctx, s.logger).Debug("transfer notification failed", logging.Error(err))
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

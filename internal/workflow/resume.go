package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/services"
	"meetscribe/internal/tasks"
)

// Resume reopens a task where needed and dispatches the trigger for its next
// stage. It returns the task's status after any reopen.
func (o *Orchestrator) Resume(ctx context.Context, taskID string) (tasks.Status, error) {
	ctx = services.WithTaskID(ctx, taskID)
	logger := logging.WithContext(ctx, o.logger)

	task, err := o.deps.Store.Get(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("load task %s: %w", taskID, err)
	}
	if task == nil {
		return "", fmt.Errorf("%w: %s", tasks.ErrNotFound, taskID)
	}
	if o.deps.Dispatcher == nil {
		return task.Status, services.Wrap(services.ErrConfiguration, "resume", "dispatch", "no dispatcher configured", nil)
	}

	if task.Claimed(time.Now()) {
		return task.Status, fmt.Errorf("%w: %s is being processed until %s",
			tasks.ErrClaimed, taskID, task.ClaimedUntil.Format(time.RFC3339))
	}

	status := task.Status
	switch status {
	case tasks.StatusCompleted, tasks.StatusCompletedWithPublishErrors:
		return status, ErrAlreadyComplete
	case tasks.StatusUploadFailed:
		if status, err = o.deps.Store.ReopenUpload(ctx, taskID); err != nil {
			return task.Status, err
		}
	case tasks.StatusFailed:
		if status, err = o.deps.Store.ReopenFailed(ctx, taskID); err != nil {
			return task.Status, err
		}
	}

	attempt := uuid.NewString()
	if status == tasks.StatusUploadPending {
		err = o.deps.Dispatcher.DispatchTransfer(ctx, dispatch.TransferPayload{
			TaskID:           task.ID,
			DownloadURL:      task.SourceURL,
			OriginalFileName: task.OriginalFileName,
			Mimetype:         task.Mimetype,
			Filetype:         task.Filetype,
			Attempt:          attempt,
		})
	} else {
		err = o.deps.Dispatcher.DispatchProcess(ctx, dispatch.ProcessPayload{
			TaskID:      task.ID,
			StoragePath: task.StoragePath,
			Attempt:     attempt,
		})
	}
	if err != nil {
		return o.recordDispatchFailure(ctx, task.ID, status, err)
	}
	logger.Info("task resumed",
		logging.String(logging.FieldEventType, "task_resumed"),
		logging.String("previous_status", string(task.Status)),
		logging.Status(status),
	)
	return status, nil
}

// recordDispatchFailure moves the task back to the failure branch of its lane so
// a later resume can pick it up again.
func (o *Orchestrator) recordDispatchFailure(ctx context.Context, id string, status tasks.Status, cause error) (tasks.Status, error) {
	message := "dispatch: " + services.Details(cause).Message
	var (
		next   tasks.Status
		record error
	)
	switch status {
	case tasks.StatusUploadPending, tasks.StatusUploaded:
		next, record = tasks.StatusUploadFailed, o.deps.Store.MarkUploadFailed(ctx, id, message)
	default:
		next, record = tasks.StatusFailed, o.deps.Store.MarkFailed(ctx, id, message)
	}
	if record != nil {
		logging.WithContext(ctx, o.logger).Error("failed to persist dispatch failure", logging.Error(record))
		return status, fmt.Errorf("resume %s: %w", id, cause)
	}
	return next, fmt.Errorf("resume %s: %w", id, cause)
}

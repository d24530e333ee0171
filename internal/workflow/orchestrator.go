package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/meetinginfo"
	"meetscribe/internal/notifications"
	"meetscribe/internal/services"
	"meetscribe/internal/services/notion"
	"meetscribe/internal/storage"
	"meetscribe/internal/summary"
	"meetscribe/internal/tasks"
)

// ErrAlreadyComplete is returned by Resume for tasks that already finished.
var ErrAlreadyComplete = errors.New("task already complete")

// Step names recorded as the error_message prefix.
const (
	StepFetch      = "fetch"
	StepMedia      = "media"
	StepTranscribe = "transcribe"
	StepSummarize  = "summarize"
	StepPublish    = "publish"
)

const (
	defaultPreviewLength = 300
	defaultClaimTTL      = time.Hour
)

// Store is the task store surface the orchestrator drives.
type Store interface {
	Get(ctx context.Context, id string) (*tasks.Task, error)
	Claim(ctx context.Context, id, token string, ttl time.Duration) error
	Release(ctx context.Context, id, token string) error
	BeginProcessing(ctx context.Context, id string) error
	SaveTranscript(ctx context.Context, id, transcript string) error
	SaveSummary(ctx context.Context, id, summaryJSON string) error
	Complete(ctx context.Context, id string, result tasks.PublishResult) error
	MarkFailed(ctx context.Context, id, message string) error
	MarkUploadFailed(ctx context.Context, id, message string) error
	ReopenUpload(ctx context.Context, id string) (tasks.Status, error)
	ReopenFailed(ctx context.Context, id string) (tasks.Status, error)
}

// Transcriber converts media into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, media io.Reader) (string, error)
}

// Summarizer turns a transcript into the structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (summary.Summary, error)
}

// Publisher writes the summary to every configured destination.
type Publisher interface {
	Publish(ctx context.Context, input notion.Input) notion.Outcome
}

// Dispatcher sends the triggers Resume needs.
type Dispatcher interface {
	DispatchTransfer(ctx context.Context, payload dispatch.TransferPayload) error
	DispatchProcess(ctx context.Context, payload dispatch.ProcessPayload) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store       Store
	Bucket      storage.Bucket
	Transcriber Transcriber
	Summarizer  Summarizer
	Publisher   Publisher
	Dispatcher  Dispatcher
	Notifier    notifications.Service
	// PreviewLength caps the summary preview in success notifications, in runes.
	PreviewLength int
	// ClaimTTL bounds how long one run may hold a task before another may take it.
	ClaimTTL time.Duration
}

// Orchestrator runs process triggers.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// New builds an orchestrator.
func New(deps Deps, logger *slog.Logger) *Orchestrator {
	if deps.PreviewLength <= 0 {
		deps.PreviewLength = defaultPreviewLength
	}
	if deps.ClaimTTL <= 0 {
		deps.ClaimTTL = defaultClaimTTL
	}
	return &Orchestrator{deps: deps, logger: logging.NewComponentLogger(logger, "workflow")}
}

// run carries one task through the steps of a single Process call.
type run struct {
	task        *tasks.Task
	started     time.Time
	meetingDate string
	transcript  string
	summary     summary.Summary
	artifacts   artifactPaths
}

type artifactPaths struct {
	transcript string
	summary    string
}

// Process runs the chain from the task's checkpoint. It returns an error only
// when a failure could not be recorded on the task.
func (o *Orchestrator) Process(ctx context.Context, payload dispatch.ProcessPayload) error {
	if err := payload.Validate(); err != nil {
		logging.WarnWithContext(o.logger, "process trigger rejected", "process_invalid", logging.Error(err))
		return err
	}
	ctx = services.WithTaskID(ctx, payload.TaskID)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, o.logger)

	task, err := o.deps.Store.Get(ctx, payload.TaskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", payload.TaskID, err)
	}
	if task == nil {
		logging.WarnWithContext(logger, "process trigger for unknown task", "process_unknown_task")
		o.notify(ctx, notifications.Payload{
			TaskID:       payload.TaskID,
			Status:       notifications.StatusFailed,
			ErrorMessage: StepFetch + ": task not found",
		})
		return nil
	}
	switch {
	case task.Status.IsComplete():
		logger.Info("task already complete; nothing to do",
			logging.Status(task.Status),
			logging.String(logging.FieldEventType, "process_noop"),
		)
		return nil
	case task.Status == tasks.StatusUploadPending || task.Status.IsFailure():
		logger.Info("task not ready for processing",
			logging.Status(task.Status),
			logging.String(logging.FieldEventType, "process_skipped"),
		)
		return nil
	}

	token := uuid.NewString()
	if err := o.deps.Store.Claim(ctx, task.ID, token, o.deps.ClaimTTL); err != nil {
		if errors.Is(err, tasks.ErrClaimed) || errors.Is(err, tasks.ErrConflict) {
			logger.Info("task claimed by another run",
				logging.String(logging.FieldEventType, "process_claimed"),
				logging.Error(err),
			)
			return nil
		}
		return fmt.Errorf("claim %s: %w", task.ID, err)
	}
	defer o.release(ctx, task.ID, token)
	if task, err = o.deps.Store.Get(ctx, payload.TaskID); err != nil {
		return fmt.Errorf("reload task %s: %w", payload.TaskID, err)
	}
	if task == nil {
		return fmt.Errorf("%w: %s", tasks.ErrNotFound, payload.TaskID)
	}

	if payload.StoragePath != "" && task.StoragePath != "" && payload.StoragePath != task.StoragePath {
		logging.WarnWithContext(logger, "trigger storage path differs from task; using task", "storage_path_mismatch",
			logging.String("trigger_storage_path", payload.StoragePath),
			logging.String("storage_path", task.StoragePath),
		)
	}

	r := &run{
		task:        task,
		started:     time.Now(),
		meetingDate: meetinginfo.NormalizeDate(task.MeetingDate),
		transcript:  task.TranscriptionResult,
	}
	if task.MeetingDate != "" && r.meetingDate == "" {
		logging.WarnWithContext(logger, "dropping malformed meeting date", "meeting_date_invalid",
			logging.String("meeting_date", task.MeetingDate),
		)
	}

	if task.Status == tasks.StatusUploaded {
		if err := o.deps.Store.BeginProcessing(ctx, task.ID); err != nil {
			if errors.Is(err, tasks.ErrConflict) {
				logger.Info("task claimed by another run", logging.Error(err))
				return nil
			}
			return fmt.Errorf("begin processing %s: %w", task.ID, err)
		}
		task.Status = tasks.StatusProcessing
	}
	logger.Info("processing started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("checkpoint", string(task.Status)),
		logging.String("original_file_name", task.OriginalFileName),
	)

	if task.Status == tasks.StatusProcessing {
		if step, err := o.transcribe(ctx, r); err != nil {
			return o.fail(ctx, r, step, err)
		}
	}
	if task.Status == tasks.StatusTranscribed {
		if err := o.summarize(ctx, r); err != nil {
			return o.fail(ctx, r, StepSummarize, err)
		}
	}
	if task.Status == tasks.StatusSummarized {
		if err := o.publish(ctx, r); err != nil {
			return o.fail(ctx, r, StepPublish, err)
		}
	}
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, r *run) (string, error) {
	logger := logging.WithContext(ctx, o.logger)
	if strings.TrimSpace(r.task.StoragePath) == "" {
		return StepMedia, services.Wrap(services.ErrValidation, StepMedia, "open", "task has no storage path", nil)
	}
	media, err := o.deps.Bucket.Open(ctx, r.task.StoragePath)
	if err != nil {
		marker := services.ErrExternalTool
		if errors.Is(err, storage.ErrNotFound) {
			marker = services.ErrNotFound
		}
		return StepMedia, services.Wrap(marker, StepMedia, "open", r.task.StoragePath, err)
	}
	defer media.Close()

	started := time.Now()
	transcript, err := o.deps.Transcriber.Transcribe(ctx, media)
	if err != nil {
		return StepTranscribe, err
	}
	if err := o.deps.Store.SaveTranscript(ctx, r.task.ID, transcript); err != nil {
		return StepTranscribe, fmt.Errorf("save transcript: %w", err)
	}
	r.task.Status = tasks.StatusTranscribed
	r.transcript = transcript
	logger.Info("transcript saved",
		logging.Int("transcript_runes", len([]rune(transcript))),
		logging.Duration("step_duration", time.Since(started)),
	)
	r.artifacts.transcript = o.writeArtifact(ctx, storage.TranscriptKey(r.task.ID), transcript, "text/plain; charset=utf-8")
	return "", nil
}

func (o *Orchestrator) summarize(ctx context.Context, r *run) error {
	started := time.Now()
	result, err := o.deps.Summarizer.Summarize(ctx, r.transcript)
	if err != nil {
		return err
	}
	if err := o.deps.Store.SaveSummary(ctx, r.task.ID, result.JSON()); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	r.task.Status = tasks.StatusSummarized
	r.summary = result
	logging.WithContext(ctx, o.logger).Info("summary saved",
		logging.String("title", result.Title),
		logging.Duration("step_duration", time.Since(started)),
	)
	r.artifacts.summary = o.writeArtifact(ctx, storage.SummaryKey(r.task.ID), result.JSON(), "application/json")
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, r *run) error {
	logger := logging.WithContext(ctx, o.logger)
	if r.summary == (summary.Summary{}) {
		stored, err := summary.Parse(r.task.SummaryResult)
		if err != nil {
			return services.Wrap(services.ErrValidation, StepPublish, "load summary", "stored summary is unreadable", err)
		}
		r.summary = stored
	}
	var outcome notion.Outcome
	if o.deps.Publisher != nil {
		outcome = o.deps.Publisher.Publish(ctx, notion.Input{
			TaskID:         r.task.ID,
			Summary:        r.summary,
			MeetingDate:    r.meetingDate,
			ConsultantName: r.task.ConsultantName,
			ClientName:     r.task.ClientName,
		})
	}
	result := tasks.PublishResult{
		PageIDs:  outcome.PageIDs(),
		PageURL:  outcome.FirstURL(),
		Failures: outcome.FailureMessages(),
	}
	if err := o.deps.Store.Complete(ctx, r.task.ID, result); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	status := result.Status()
	r.task.Status = status
	logger.Info("processing completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Status(status),
		logging.Int("pages", len(result.PageIDs)),
		logging.Int("publish_failures", len(result.Failures)),
		logging.Duration("stage_duration", time.Since(r.started)),
	)

	payload := notifications.Payload{
		TaskID:                r.task.ID,
		Channel:               r.task.SourceChannelID,
		Status:                string(status),
		OriginalFileName:      r.task.OriginalFileName,
		SummaryText:           r.summary.Preview(o.deps.PreviewLength),
		StorageTranscriptPath: o.artifactPath(ctx, r.artifacts.transcript, storage.TranscriptKey(r.task.ID)),
		StorageSummaryPath:    o.artifactPath(ctx, r.artifacts.summary, storage.SummaryKey(r.task.ID)),
		NotionPageURL:         result.PageURL,
	}
	if len(result.Failures) > 0 {
		payload.ErrorMessage = "publish: " + strings.Join(result.Failures, "; ")
	}
	o.notify(ctx, payload)
	return nil
}

// fail records the failed step and sends the failure notification.
func (o *Orchestrator) fail(ctx context.Context, r *run, step string, cause error) error {
	logger := logging.WithContext(ctx, o.logger)
	details := services.Details(cause)
	message := step + ": " + strings.TrimSpace(details.Message)
	logger.Error("processing failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.ErrorKind(cause),
		logging.Step(step),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "resume the task to retry from its last checkpoint"),
	)
	if err := o.deps.Store.MarkFailed(ctx, r.task.ID, message); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record processing failure")
		} else {
			logger.Error("failed to persist processing failure", logging.Error(err))
		}
		return errors.Join(cause, err)
	}
	o.notify(ctx, notifications.Payload{
		TaskID:           r.task.ID,
		Channel:          r.task.SourceChannelID,
		Status:           notifications.StatusFailed,
		OriginalFileName: r.task.OriginalFileName,
		ErrorMessage:     message,
	})
	return nil
}

// writeArtifact stores a best-effort copy of a step result and returns its key,
// or "" when the write failed.
func (o *Orchestrator) writeArtifact(ctx context.Context, key, content, contentType string) string {
	if o.deps.Bucket == nil {
		return ""
	}
	if err := o.deps.Bucket.Put(ctx, key, strings.NewReader(content), contentType); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "artifact write failed", "artifact_write_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the task result is still stored in the task database"),
		)
		return ""
	}
	return key
}

// artifactPath returns written when this run produced the artifact, otherwise
// key if an earlier run left it in the bucket.
func (o *Orchestrator) artifactPath(ctx context.Context, written, key string) string {
	if written != "" || o.deps.Bucket == nil {
		return written
	}
	rc, err := o.deps.Bucket.Open(ctx, key)
	if err != nil {
		return ""
	}
	_ = rc.Close()
	return key
}

func (o *Orchestrator) release(ctx context.Context, id, token string) {
	if err := o.deps.Store.Release(context.WithoutCancel(ctx), id, token); err != nil {
		logging.WithContext(ctx, o.logger).Warn("processing claim not released", logging.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, payload notifications.Payload) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.Publish(ctx, payload); err != nil {
		logging.WithContext(ctx, o.logger).Debug("processing notification failed", logging.Error(err))
	}
}

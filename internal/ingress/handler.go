package ingress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meetscribe/internal/api"
	"meetscribe/internal/config"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/meetinginfo"
	"meetscribe/internal/notifications"
	"meetscribe/internal/services"
	"meetscribe/internal/services/slack"
	"meetscribe/internal/tasks"
)

const maxBodyBytes = 1 << 20

// Store is the slice of the task store ingestion writes.
type Store interface {
	Create(ctx context.Context, input tasks.NewTask) (*tasks.Task, error)
	GetBySourceFile(ctx context.Context, fileID string) (*tasks.Task, error)
	MarkUploadFailed(ctx context.Context, id, message string) error
}

// FileResolver looks up file metadata.
type FileResolver interface {
	FileInfo(ctx context.Context, fileID string) (*slack.File, error)
}

// TransferDispatcher sends the transfer trigger.
type TransferDispatcher interface {
	DispatchTransfer(ctx context.Context, payload dispatch.TransferPayload) error
}

// Handler serves POST /slack/events.
type Handler struct {
	store      Store
	files      FileResolver
	dispatcher TransferDispatcher
	notifier   notifications.Service
	secret     string
	tolerance  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewHandler wires the ingress handler from the [slack] section.
func NewHandler(cfg config.Slack, store Store, files FileResolver, dispatcher TransferDispatcher, notifier notifications.Service, logger *slog.Logger) *Handler {
	tolerance := time.Duration(cfg.TimestampToleranceSeconds) * time.Second
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Handler{
		store:      store,
		files:      files,
		dispatcher: dispatcher,
		notifier:   notifier,
		secret:     cfg.SigningSecret,
		tolerance:  tolerance,
		now:        time.Now,
		logger:     logging.NewComponentLogger(logger, "ingress"),
	}
}

// SetClock overrides the clock used for timestamp checks.
func (h *Handler) SetClock(now func() time.Time) {
	if now != nil {
		h.now = now
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context(), h.logger)
	if r.Method != http.MethodPost {
		api.WriteError(w, logger, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		api.WriteError(w, logger, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	err = slack.VerifySignature(h.secret,
		r.Header.Get("X-Slack-Request-Timestamp"), body,
		r.Header.Get("X-Slack-Signature"), h.now(), h.tolerance)
	if err != nil {
		logging.WarnWithContext(logger, "slack request rejected", "signature_rejected",
			logging.Error(err),
			logging.String("remote_addr", r.RemoteAddr),
		)
		api.WriteError(w, logger, http.StatusUnauthorized, "invalid signature")
		return
	}
	// Redeliveries go through the normal path; the source file guard dedupes them.
	if retry := r.Header.Get("X-Slack-Retry-Num"); retry != "" {
		logger = logger.With(
			logging.String("retry_num", retry),
			logging.String("retry_reason", r.Header.Get("X-Slack-Retry-Reason")),
		)
		logger.Info("slack redelivery received")
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		api.WriteError(w, logger, http.StatusBadRequest, services.Details(err).Message)
		return
	}
	switch {
	case env.Type == TypeURLVerification:
		api.WriteJSON(w, logger, http.StatusOK, map[string]string{"challenge": env.Challenge})
	case env.IsFileShared():
		h.ingest(r.Context(), w, env, logger)
	default:
		eventType := ""
		if env.Event != nil {
			eventType = env.Event.Type
		}
		logger.Debug("slack event ignored",
			logging.String("type", env.Type),
			logging.String("event_type", eventType),
		)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) ingest(ctx context.Context, w http.ResponseWriter, env Envelope, logger *slog.Logger) {
	fileID := env.Event.SharedFileID()
	logger = logger.With(logging.String("file_id", fileID))

	if existing, err := h.store.GetBySourceFile(ctx, fileID); err != nil {
		logger.Error("duplicate lookup failed", logging.Error(err))
		api.WriteError(w, logger, http.StatusInternalServerError, "task store unavailable")
		return
	} else if existing != nil {
		logger.Info("file already ingested", logging.String(logging.FieldTaskID, existing.ID))
		api.WriteJSON(w, logger, http.StatusOK, api.TaskRef{TaskID: existing.ID, Status: string(existing.Status)})
		return
	}

	file, err := h.files.FileInfo(ctx, fileID)
	if err != nil {
		logging.WarnWithContext(logger, "files.info failed", "slack_file_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bot token scopes (files:read)"),
		)
		api.WriteError(w, logger, http.StatusBadGateway, "file lookup failed")
		return
	}
	if missing := missingFileFields(file); missing != "" {
		logging.WarnWithContext(logger, "shared file is incomplete", "slack_file_incomplete",
			logging.String("missing", missing),
		)
		api.WriteError(w, logger, http.StatusUnprocessableEntity, "file is missing "+missing)
		return
	}
	if !meetinginfo.IsMedia(file.Mimetype, file.Filetype, file.Name) {
		logger.Info("shared file is not a recording; ignored",
			logging.String(logging.FieldEventType, "file_ignored"),
			logging.String("mimetype", file.Mimetype),
			logging.String("filetype", file.Filetype),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	info := meetinginfo.Parse(file.Comment())
	task, err := h.store.Create(ctx, tasks.NewTask{
		SourceFileID:     file.ID,
		SourceChannelID:  env.Event.ChannelID,
		SourceURL:        file.DownloadURL(),
		OriginalFileName: file.Name,
		Mimetype:         file.Mimetype,
		Filetype:         file.Filetype,
		MeetingDate:      info.MeetingDate,
		ConsultantName:   info.ConsultantName,
		ClientName:       info.ClientName,
	})
	if errors.Is(err, tasks.ErrDuplicate) {
		// Lost a race with a concurrent delivery of the same event.
		if existing, getErr := h.store.GetBySourceFile(ctx, fileID); getErr == nil && existing != nil {
			api.WriteJSON(w, logger, http.StatusOK, api.TaskRef{TaskID: existing.ID, Status: string(existing.Status)})
			return
		}
	}
	if err != nil {
		logger.Error("task creation failed", logging.Error(err))
		api.WriteError(w, logger, http.StatusInternalServerError, "task creation failed")
		return
	}
	logger = logger.With(logging.String(logging.FieldTaskID, task.ID))
	logger.Info("task created",
		logging.String(logging.FieldEventType, "task_created"),
		logging.String("original_file_name", task.OriginalFileName),
		logging.String("extension", meetinginfo.Extension(file.Mimetype, file.Filetype, file.Name)),
		logging.String("meeting_date", task.MeetingDate),
		logging.String("consultant_name", task.ConsultantName),
		logging.String("client_name", task.ClientName),
	)

	status := tasks.StatusUploadPending
	err = h.dispatcher.DispatchTransfer(ctx, dispatch.TransferPayload{
		TaskID:           task.ID,
		DownloadURL:      task.SourceURL,
		OriginalFileName: task.OriginalFileName,
		Mimetype:         task.Mimetype,
		Filetype:         task.Filetype,
	})
	if err != nil {
		message := "dispatch: " + services.Details(err).Message
		logging.WarnWithContext(logger, "transfer dispatch failed", "dispatch_failure",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "resume the task once the dispatcher is reachable"),
		)
		if markErr := h.store.MarkUploadFailed(ctx, task.ID, message); markErr != nil {
			logger.Error("failed to persist dispatch failure", logging.Error(markErr))
		} else {
			status = tasks.StatusUploadFailed
			h.notify(ctx, notifications.Payload{
				TaskID:           task.ID,
				Channel:          task.SourceChannelID,
				Status:           notifications.StatusUploadFailed,
				OriginalFileName: task.OriginalFileName,
				ErrorMessage:     message,
			})
		}
	}
	api.WriteJSON(w, logger, http.StatusAccepted, api.TaskRef{TaskID: task.ID, Status: string(status)})
}

func (h *Handler) notify(ctx context.Context, payload notifications.Payload) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Publish(ctx, payload); err != nil {
		logging.WithContext(ctx, h.logger).Debug("ingress notification failed", logging.Error(err))
	}
}

func missingFileFields(file *slack.File) string {
	var missing []string
	if file == nil {
		return "id, name, download url"
	}
	if strings.TrimSpace(file.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(file.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(file.DownloadURL()) == "" {
		missing = append(missing, "download url")
	}
	return strings.Join(missing, ", ")
}

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"meetscribe/internal/logging"
	"meetscribe/internal/services"
	"meetscribe/internal/stage"
)

const defaultTriggerTimeout = 15 * time.Second

// HTTP posts triggers to a daemon's /triggers endpoints. The endpoints accept
// the trigger and run the stage in the background, so a POST only waits for
// the acknowledgement. A rejected or undeliverable trigger is returned to the
// caller.
type HTTP struct {
	baseURL string
	http    *resty.Client
	logger  *slog.Logger
}

// NewHTTP builds a dispatcher posting to baseURL with a bearer token. timeout
// bounds each delivery attempt.
func NewHTTP(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTP {
	if timeout <= 0 {
		timeout = defaultTriggerTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
	}
}

func (h *HTTP) DispatchTransfer(ctx context.Context, payload TransferPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	return h.post(ctx, "/triggers/transfer", payload.TaskID, payload)
}

func (h *HTTP) DispatchProcess(ctx context.Context, payload ProcessPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	return h.post(ctx, "/triggers/process", payload.TaskID, payload)
}

func (h *HTTP) post(ctx context.Context, path, taskID string, payload any) error {
	logger := logging.WithContext(ctx, h.logger)
	resp, err := h.http.R().SetContext(ctx).SetBody(payload).Post(path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "post "+path, "trigger endpoint unreachable", err)
	}
	if !resp.IsSuccess() {
		marker := services.ErrExternalTool
		switch code := resp.StatusCode(); {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			marker = services.ErrUnauthorized
		case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "dispatch", "post "+path,
			fmt.Sprintf("trigger returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())), nil)
	}
	logger.Info("trigger delivered",
		logging.String(logging.FieldTaskID, taskID),
		logging.String("path", path),
		logging.Int("status_code", resp.StatusCode()),
	)
	return nil
}

// HealthCheck reports the configured target; reachability is checked per trigger.
func (h *HTTP) HealthCheck(context.Context) stage.Health {
	if h.baseURL == "" {
		return stage.Unhealthy(stage.ComponentDispatch, "trigger base url not configured")
	}
	return stage.Health{Name: stage.ComponentDispatch, Ready: true, Detail: "http " + h.baseURL}
}

func (h *HTTP) Close() error { return nil }

package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
)

const userAgent = "meetscribe/1.0"

// Service is the notification surface used by pipeline stages.
type Service interface {
	Publish(ctx context.Context, payload Payload) error
}

// Sink delivers a rendered message to one transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message, payload Payload) error
}

// Poster posts a chat message; *slack.Client satisfies it.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// NewService builds the configured fan-out service. poster may be nil when no
// Slack bot token is configured.
func NewService(cfg *config.Config, poster Poster, logger *slog.Logger) Service {
	logger = logging.NewComponentLogger(logger, "notifications")
	var sinks []Sink
	if cfg != nil {
		if cfg.Notifications.SlackEnabled && poster != nil {
			sinks = append(sinks, NewSlackSink(poster, cfg.Slack.NotifyChannel))
		}
		if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
			sinks = append(sinks, NewNtfySink(topic, time.Duration(cfg.Notifications.RequestTimeout)*time.Second))
		}
	}
	if len(sinks) == 0 {
		return &noopService{logger: logger}
	}
	return &fanoutService{sinks: sinks, logger: logger}
}

// NewFanout builds a service over explicit sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) Service {
	return &fanoutService{sinks: sinks, logger: logging.NewComponentLogger(logger, "notifications")}
}

type fanoutService struct {
	sinks  []Sink
	logger *slog.Logger
}

// Publish sends to every sink and joins their errors. Each failure is logged.
func (s *fanoutService) Publish(ctx context.Context, payload Payload) error {
	logger := logging.WithContext(ctx, s.logger)
	if err := payload.Validate(); err != nil {
		logging.WarnWithContext(logger, "notification dropped", "notification_invalid",
			logging.Error(err),
			logging.String(logging.FieldTaskID, payload.TaskID),
		)
		return err
	}
	msg := Render(payload)
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, msg, payload); err != nil {
			logging.WarnWithContext(logger, "notification delivery failed", "notification_failure",
				logging.String("sink", sink.Name()),
				logging.String(logging.FieldTaskID, payload.TaskID),
				logging.String("kind", string(msg.Kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notification credentials and channel"),
			)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		logger.Debug("notification delivered",
			logging.String("sink", sink.Name()),
			logging.String(logging.FieldTaskID, payload.TaskID),
			logging.String("kind", string(msg.Kind)),
		)
	}
	return errors.Join(errs...)
}

type noopService struct {
	logger *slog.Logger
}

func (s *noopService) Publish(ctx context.Context, payload Payload) error {
	msg := Render(payload)
	logging.WithContext(ctx, s.logger).Info("notification (no sink configured)",
		logging.String(logging.FieldTaskID, payload.TaskID),
		logging.String("kind", string(msg.Kind)),
		logging.String("title", msg.Title),
	)
	return nil
}

// SlackSink posts messages through chat.postMessage.
type SlackSink struct {
	poster  Poster
	channel string
}

// NewSlackSink posts to channel unless a payload names its own.
func NewSlackSink(poster Poster, channel string) *SlackSink {
	return &SlackSink{poster: poster, channel: strings.TrimSpace(channel)}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, msg Message, payload Payload) error {
	channel := strings.TrimSpace(payload.Channel)
	if channel == "" {
		channel = s.channel
	}
	if channel == "" {
		return errors.New("no slack channel configured")
	}
	return s.poster.PostMessage(ctx, channel, msg.Text())
}

// NtfySink publishes messages to an ntfy topic URL.
type NtfySink struct {
	endpoint string
	http     *resty.Client
}

// NewNtfySink builds a sink for the topic URL.
func NewNtfySink(endpoint string, timeout time.Duration) *NtfySink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfySink{
		endpoint: endpoint,
		http:     resty.New().SetTimeout(timeout).SetHeader("User-Agent", userAgent),
	}
}

func (n *NtfySink) Name() string { return "ntfy" }

func (n *NtfySink) Send(ctx context.Context, msg Message, _ Payload) error {
	req := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(msg.Body)
	if msg.Title != "" {
		req.SetHeader("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.SetHeader("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.SetHeader("Priority", msg.Priority)
	}
	resp, err := req.Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.StatusCode() >= 300 {
		body := strings.TrimSpace(resp.String())
		if len(body) > 2048 {
			body = body[:2048]
		}
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), body)
	}
	return nil
}

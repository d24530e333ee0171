package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
	"meetscribe/internal/notifications"
)

type recordingPoster struct {
	channels []string
	texts    []string
	err      error
}

func (p *recordingPoster) PostMessage(_ context.Context, channel, text string) error {
	p.channels = append(p.channels, channel)
	p.texts = append(p.texts, text)
	return p.err
}

func TestRenderShapes(t *testing.T) {
	tests := []struct {
		name     string
		payload  notifications.Payload
		kind     notifications.Kind
		title    string
		contains []string
	}{
		{
			name: "success",
			payload: notifications.Payload{
				TaskID:             "t1",
				Status:             "completed",
				OriginalFileName:   "weekly.mp4",
				SummaryText:        "■ タイトル\n定例",
				NotionPageURL:      "https://notion.so/p1",
				StorageSummaryPath: "artifacts/t1/summary.json",
			},
			kind:     notifications.KindSuccess,
			title:    "✅ Meeting summary ready",
			contains: []string{"File: weekly.mp4", "Task: t1", "Notion: https://notion.so/p1", "■ タイトル", "artifacts/t1/summary.json"},
		},
		{
			name: "publish errors",
			payload: notifications.Payload{
				TaskID:       "t2",
				Status:       "completed_with_publish_errors",
				ErrorMessage: "publish: client-facing: 400",
			},
			kind:     notifications.KindSuccess,
			title:    "⚠️ Meeting summary ready (publish errors)",
			contains: []string{"Publish errors: publish: client-facing: 400", "File: (unknown file)"},
		},
		{
			name: "failure",
			payload: notifications.Payload{
				TaskID:           "t3",
				Status:           "failed",
				OriginalFileName: "weekly.mp4",
				ErrorMessage:     "transcribe: upload rejected",
			},
			kind:     notifications.KindFailure,
			title:    "❌ Meeting processing failed",
			contains: []string{"Error: transcribe: upload rejected", "Task: t3"},
		},
		{
			name:     "upload failure",
			payload:  notifications.Payload{TaskID: "t4", Status: "upload_failed"},
			kind:     notifications.KindFailure,
			title:    "❌ Meeting upload failed",
			contains: []string{"Error: unknown error"},
		},
		{
			name:     "unknown",
			payload:  notifications.Payload{TaskID: "t5", Status: "failed_in_vercel"},
			kind:     notifications.KindUnknown,
			title:    "ℹ️ Meeting task update",
			contains: []string{`Status: "failed_in_vercel"`},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := notifications.Render(tc.payload)
			if msg.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", msg.Kind, tc.kind)
			}
			if msg.Title != tc.title {
				t.Fatalf("title = %q, want %q", msg.Title, tc.title)
			}
			for _, want := range tc.contains {
				if !strings.Contains(msg.Body, want) {
					t.Fatalf("body %q missing %q", msg.Body, want)
				}
			}
		})
	}
}

func TestNewServiceNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg, nil, logging.NewNop())
	if err := svc.Publish(context.Background(), notifications.Payload{TaskID: "t1", Status: "completed"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestSlackSinkUsesPayloadChannelThenDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Slack.NotifyChannel = "C-DEFAULT"
	poster := &recordingPoster{}
	svc := notifications.NewService(&cfg, poster, logging.NewNop())

	if err := svc.Publish(context.Background(), notifications.Payload{TaskID: "t1", Status: "completed", Channel: "C-SOURCE"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Payload{TaskID: "t2", Status: "failed"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(poster.channels) != 2 || poster.channels[0] != "C-SOURCE" || poster.channels[1] != "C-DEFAULT" {
		t.Fatalf("unexpected channels %v", poster.channels)
	}
	if !strings.HasPrefix(poster.texts[1], "❌ Meeting processing failed\n") {
		t.Fatalf("unexpected failure text %q", poster.texts[1])
	}
}

func TestSlackSinkWithoutChannelFails(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg, &recordingPoster{}, logging.NewNop())
	if err := svc.Publish(context.Background(), notifications.Payload{TaskID: "t1", Status: "completed"}); err == nil {
		t.Fatal("expected error when no channel is available")
	}
}

func TestNtfySinkFormatsHeaders(t *testing.T) {
	var captured struct {
		title, tags, priority, body string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.SlackEnabled = false
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg, nil, logging.NewNop())

	payload := notifications.Payload{TaskID: "t1", Status: "failed", OriginalFileName: "a.mov", ErrorMessage: "summarize: not json"}
	if err := svc.Publish(context.Background(), payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if captured.title != "❌ Meeting processing failed" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.tags != "meetscribe,error,alert" || captured.priority != "high" {
		t.Fatalf("unexpected tags/priority %q %q", captured.tags, captured.priority)
	}
	if !strings.Contains(captured.body, "Error: summarize: not json") {
		t.Fatalf("unexpected body %q", captured.body)
	}
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }

func (failingSink) Send(context.Context, notifications.Message, notifications.Payload) error {
	return errors.New("down")
}

func TestFanoutContinuesPastFailingSink(t *testing.T) {
	poster := &recordingPoster{}
	svc := notifications.NewFanout(logging.NewNop(), failingSink{}, notifications.NewSlackSink(poster, "C1"))

	err := svc.Publish(context.Background(), notifications.Payload{TaskID: "t1", Status: "completed"})
	if err == nil || !strings.Contains(err.Error(), "broken: down") {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if len(poster.texts) != 1 {
		t.Fatalf("expected slack delivery despite failing sink, got %d", len(poster.texts))
	}
}

func TestPublishRejectsInvalidPayload(t *testing.T) {
	svc := notifications.NewFanout(logging.NewNop(), notifications.NewSlackSink(&recordingPoster{}, "C1"))
	if err := svc.Publish(context.Background(), notifications.Payload{Status: "completed"}); err == nil {
		t.Fatal("expected validation error for missing task id")
	}
}

package notifications

import (
	"fmt"
	"strings"
)

// Message is the transport-neutral rendering of a payload.
type Message struct {
	Kind     Kind
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Text joins title and body for chat transports.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n" + m.Body
}

// Render builds the message for a payload.
func Render(p Payload) Message {
	name := strings.TrimSpace(p.OriginalFileName)
	if name == "" {
		name = "(unknown file)"
	}
	lines := []string{
		"File: " + name,
		"Task: " + strings.TrimSpace(p.TaskID),
	}

	switch KindOf(p.Status) {
	case KindSuccess:
		title := "✅ Meeting summary ready"
		tags := []string{"meetscribe", "completed"}
		if p.Status == StatusCompletedWithPublishErrors {
			title = "⚠️ Meeting summary ready (publish errors)"
			tags = []string{"meetscribe", "completed", "warning"}
		}
		if p.NotionPageURL != "" {
			lines = append(lines, "Notion: "+p.NotionPageURL)
		}
		if p.StorageSummaryPath != "" {
			lines = append(lines, "Summary: "+p.StorageSummaryPath)
		}
		if p.StorageTranscriptPath != "" {
			lines = append(lines, "Transcript: "+p.StorageTranscriptPath)
		}
		if p.ErrorMessage != "" {
			lines = append(lines, "Publish errors: "+p.ErrorMessage)
		}
		if text := strings.TrimSpace(p.SummaryText); text != "" {
			lines = append(lines, "", text)
		}
		return Message{Kind: KindSuccess, Title: title, Body: strings.Join(lines, "\n"), Tags: tags}
	case KindFailure:
		title := "❌ Meeting processing failed"
		if p.Status == StatusUploadFailed {
			title = "❌ Meeting upload failed"
		}
		detail := strings.TrimSpace(p.ErrorMessage)
		if detail == "" {
			detail = "unknown error"
		}
		lines = append(lines, "Error: "+detail)
		return Message{
			Kind:     KindFailure,
			Title:    title,
			Body:     strings.Join(lines, "\n"),
			Tags:     []string{"meetscribe", "error", "alert"},
			Priority: "high",
		}
	default:
		lines = append(lines, fmt.Sprintf("Status: %q", p.Status))
		return Message{
			Kind:  KindUnknown,
			Title: "ℹ️ Meeting task update",
			Body:  strings.Join(lines, "\n"),
			Tags:  []string{"meetscribe", "unknown"},
		}
	}
}

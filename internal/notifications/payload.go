package notifications

import (
	"errors"
	"strings"
)

// Status values carried by payloads.
const (
	StatusCompleted                  = "completed"
	StatusCompletedWithPublishErrors = "completed_with_publish_errors"
	StatusFailed                     = "failed"
	StatusUploadFailed               = "upload_failed"
)

// Payload describes one task outcome.
type Payload struct {
	TaskID                string `json:"task_id"`
	Status                string `json:"status"`
	OriginalFileName      string `json:"original_file_name"`
	SummaryText           string `json:"summary_text,omitempty"`
	StorageSummaryPath    string `json:"storage_summary_path,omitempty"`
	StorageTranscriptPath string `json:"storage_transcript_path,omitempty"`
	NotionPageURL         string `json:"notion_page_url,omitempty"`
	ErrorMessage          string `json:"error_message,omitempty"`
	// Channel overrides the configured Slack channel.
	Channel string `json:"channel,omitempty"`
}

// Validate rejects payloads that cannot produce a useful message.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.TaskID) == "" {
		return errors.New("notification payload: task_id is required")
	}
	if strings.TrimSpace(p.Status) == "" {
		return errors.New("notification payload: status is required")
	}
	return nil
}

// Kind is the rendered message shape.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
	KindUnknown Kind = "unknown"
)

// KindOf classifies a payload status.
func KindOf(status string) Kind {
	switch strings.TrimSpace(status) {
	case StatusCompleted, StatusCompletedWithPublishErrors:
		return KindSuccess
	case StatusFailed, StatusUploadFailed:
		return KindFailure
	default:
		return KindUnknown
	}
}

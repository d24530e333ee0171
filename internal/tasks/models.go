package tasks

import (
	"fmt"
	"strings"
	"time"
)

// Status represents a task's position in the pipeline.
type Status string

const (
	StatusUploadPending              Status = "upload_pending"
	StatusUploadFailed               Status = "upload_failed"
	StatusUploaded                   Status = "uploaded"
	StatusProcessing                 Status = "processing"
	StatusTranscribed                Status = "transcribed"
	StatusSummarized                 Status = "summarized"
	StatusCompleted                  Status = "completed"
	StatusCompletedWithPublishErrors Status = "completed_with_publish_errors"
	StatusFailed                     Status = "failed"
)

var allStatuses = []Status{
	StatusUploadPending,
	StatusUploadFailed,
	StatusUploaded,
	StatusProcessing,
	StatusTranscribed,
	StatusSummarized,
	StatusCompleted,
	StatusCompletedWithPublishErrors,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitions lists every edge of the task state machine. Edges out of the
// failure states are only taken by an explicit reopen.
var transitions = map[Status][]Status{
	StatusUploadPending: {StatusUploaded, StatusUploadFailed},
	StatusUploaded:      {StatusProcessing, StatusUploadFailed},
	StatusProcessing:    {StatusTranscribed, StatusFailed},
	StatusTranscribed:   {StatusSummarized, StatusFailed},
	StatusSummarized:    {StatusCompleted, StatusCompletedWithPublishErrors, StatusFailed},
	StatusUploadFailed:  {StatusUploadPending, StatusUploaded},
	StatusFailed:        {StatusProcessing, StatusTranscribed, StatusSummarized},
}

// AllStatuses returns every known status in pipeline order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether the state machine permits moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether normal operation stops at this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithPublishErrors, StatusUploadFailed, StatusFailed:
		return true
	default:
		return false
	}
}

// IsFailure reports whether the status is a failure branch.
func (s Status) IsFailure() bool {
	return s == StatusUploadFailed || s == StatusFailed
}

// IsComplete reports whether the task finished, with or without publish errors.
func (s Status) IsComplete() bool {
	return s == StatusCompleted || s == StatusCompletedWithPublishErrors
}

// Legacy maps the status onto the coarse legacy_status column.
func (s Status) Legacy() string {
	switch s {
	case StatusProcessing, StatusTranscribed, StatusSummarized:
		return "processing"
	case StatusCompleted, StatusCompletedWithPublishErrors:
		return "completed"
	case StatusUploadFailed, StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Task is one ingested file's durable pipeline record.
type Task struct {
	ID                  string
	Status              Status
	SourceFileID        string
	SourceChannelID     string
	SourceURL           string
	StoragePath         string
	OriginalFileName    string
	Mimetype            string
	Filetype            string
	MeetingDate         string
	ConsultantName      string
	ClientName          string
	TranscriptionResult string
	SummaryResult       string
	NotionPageID        string
	NotionPageURL       string
	ErrorMessage        string
	// ClaimedUntil is when the current processing claim lapses; zero when unclaimed.
	ClaimedUntil        time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProcessedAt         *time.Time
}

// NewTask carries the provenance captured by ingress.
type NewTask struct {
	SourceFileID     string
	SourceChannelID  string
	SourceURL        string
	OriginalFileName string
	Mimetype         string
	Filetype         string
	MeetingDate      string
	ConsultantName   string
	ClientName       string
}

// Validate checks the fields every task must carry.
func (n NewTask) Validate() error {
	if strings.TrimSpace(n.OriginalFileName) == "" {
		return fmt.Errorf("%w: original file name is required", ErrInvalid)
	}
	if n.MeetingDate != "" && !isISODate(n.MeetingDate) {
		return fmt.Errorf("%w: meeting date %q is not YYYY-MM-DD", ErrInvalid, n.MeetingDate)
	}
	return nil
}

// PublishResult records what the destination publish step produced.
type PublishResult struct {
	PageIDs []string
	PageURL string
	// Failures holds one message per destination that could not be written.
	Failures []string
}

// Status returns the completion status implied by the publish outcome.
func (r PublishResult) Status() Status {
	if len(r.Failures) > 0 {
		return StatusCompletedWithPublishErrors
	}
	return StatusCompleted
}

// PageIDs splits the comma-joined destination page identifiers.
func (t *Task) PageIDs() []string {
	if t == nil || strings.TrimSpace(t.NotionPageID) == "" {
		return nil
	}
	parts := strings.Split(t.NotionPageID, ",")
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Checkpoint returns the processing status a reopened task resumes from,
// derived from the artifacts already written.
func (t *Task) Checkpoint() Status {
	switch {
	case t.SummaryResult != "":
		return StatusSummarized
	case t.TranscriptionResult != "":
		return StatusTranscribed
	default:
		return StatusProcessing
	}
}

// FailedStep names the step implied by the last written artifact.
func (t *Task) FailedStep() string {
	if t.Status != StatusFailed && t.Status != StatusUploadFailed {
		return ""
	}
	if t.Status == StatusUploadFailed {
		return "transfer"
	}
	switch t.Checkpoint() {
	case StatusSummarized:
		return "publish"
	case StatusTranscribed:
		return "summarize"
	default:
		return "transcribe"
	}
}

func isISODate(value string) bool {
	_, err := time.Parse(time.DateOnly, value)
	return err == nil && len(value) == len(time.DateOnly)
}

// Claimed reports whether a processing claim is still live at now.
func (t *Task) Claimed(now time.Time) bool {
	return t != nil && !t.ClaimedUntil.IsZero() && now.Before(t.ClaimedUntil)
}

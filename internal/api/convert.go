package api

import (
	"encoding/json"
	"slices"
	"time"

	"meetscribe/internal/stage"
	"meetscribe/internal/tasks"
)

// FromTask converts a task record to its API representation. Artifact bodies are
// included when withArtifacts is set.
func FromTask(task *tasks.Task, withArtifacts bool) Task {
	if task == nil {
		return Task{}
	}
	dto := Task{
		ID:               task.ID,
		Status:           string(task.Status),
		LegacyStatus:     task.Status.Legacy(),
		SourceFileID:     task.SourceFileID,
		SourceChannelID:  task.SourceChannelID,
		OriginalFileName: task.OriginalFileName,
		Mimetype:         task.Mimetype,
		StoragePath:      task.StoragePath,
		MeetingDate:      task.MeetingDate,
		ConsultantName:   task.ConsultantName,
		ClientName:       task.ClientName,
		HasTranscript:    task.TranscriptionResult != "",
		HasSummary:       task.SummaryResult != "",
		NotionPageIDs:    task.PageIDs(),
		NotionPageURL:    task.NotionPageURL,
		ErrorMessage:     task.ErrorMessage,
		FailedStep:       task.FailedStep(),
		CreatedAt:        FormatTime(task.CreatedAt),
		UpdatedAt:        FormatTime(task.UpdatedAt),
	}
	if task.ProcessedAt != nil {
		dto.ProcessedAt = FormatTime(*task.ProcessedAt)
	}
	if withArtifacts {
		dto.Transcript = task.TranscriptionResult
		if raw := task.SummaryResult; raw != "" && json.Valid([]byte(raw)) {
			dto.Summary = json.RawMessage(raw)
		}
	}
	return dto
}

// FromTasks converts a slice of task records.
func FromTasks(items []*tasks.Task) []Task {
	if len(items) == 0 {
		return nil
	}
	out := make([]Task, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromTask(item, false))
	}
	return out
}

// MergeStats produces a string-keyed representation with every status present.
func MergeStats(stats map[tasks.Status]int) map[string]int {
	out := make(map[string]int, len(tasks.AllStatuses()))
	for _, status := range tasks.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts health records into a slice ordered by name.
func StageHealthSlice(health []stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	slices.SortStableFunc(out, func(a, b StageHealth) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a pipeline task in a transport-friendly format.
type Task struct {
	ID               string   `json:"id"`
	Status           string   `json:"status"`
	LegacyStatus     string   `json:"legacyStatus"`
	SourceFileID     string   `json:"sourceFileId,omitempty"`
	SourceChannelID  string   `json:"sourceChannelId,omitempty"`
	OriginalFileName string   `json:"originalFileName"`
	Mimetype         string   `json:"mimetype,omitempty"`
	StoragePath      string   `json:"storagePath,omitempty"`
	MeetingDate      string   `json:"meetingDate,omitempty"`
	ConsultantName   string   `json:"consultantName,omitempty"`
	ClientName       string   `json:"clientName,omitempty"`
	HasTranscript    bool     `json:"hasTranscript"`
	HasSummary       bool     `json:"hasSummary"`
	NotionPageIDs    []string `json:"notionPageIds,omitempty"`
	NotionPageURL    string   `json:"notionPageUrl,omitempty"`
	ErrorMessage     string   `json:"errorMessage,omitempty"`
	FailedStep       string   `json:"failedStep,omitempty"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
	ProcessedAt      string   `json:"processedAt,omitempty"`

	Transcript string          `json:"transcript,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline components.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse aggregates component readiness.
type HealthResponse struct {
	Ready      bool          `json:"ready"`
	Components []StageHealth `json:"components"`
}

// StatsResponse provides normalized task counts.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Items []Task `json:"items"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Item Task `json:"item"`
}

// TaskRef names a task and its status; ingress and trigger endpoints return it.
type TaskRef struct {
	TaskID string `json:"taskId"`
	Status string `json:"status,omitempty"`
}

// ResumeResponse reports the status a resumed task moved to.
type ResumeResponse struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Complete bool   `json:"complete,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

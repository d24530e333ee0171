package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"meetscribe/internal/services"
)

// Task type names registered with the asynq mux.
const (
	TypeTransfer = "meetscribe:transfer"
	TypeProcess  = "meetscribe:process"
)

// TransferPayload triggers the transfer stage.
type TransferPayload struct {
	TaskID           string `json:"taskId"`
	DownloadURL      string `json:"slack_download_url"`
	OriginalFileName string `json:"original_file_name"`
	Mimetype         string `json:"mimetype"`
	Filetype         string `json:"filetype"`
	// Attempt distinguishes an operator-requested re-run from the original trigger.
	Attempt string `json:"attempt,omitempty"`
}

// Validate checks the fields the transfer stage cannot run without.
func (p TransferPayload) Validate() error {
	if strings.TrimSpace(p.TaskID) == "" {
		return services.Wrap(services.ErrValidation, "transfer", "payload", "taskId is required", nil)
	}
	if strings.TrimSpace(p.DownloadURL) == "" {
		return services.Wrap(services.ErrValidation, "transfer", "payload", "slack_download_url is required", nil)
	}
	parsed, err := url.Parse(p.DownloadURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "transfer", "payload", fmt.Sprintf("invalid download url %q", p.DownloadURL), nil)
	}
	return nil
}

// ProcessPayload triggers the processing orchestrator.
type ProcessPayload struct {
	TaskID      string `json:"taskId"`
	StoragePath string `json:"storagePath,omitempty"`
	Attempt     string `json:"attempt,omitempty"`
}

// Validate checks the task id is present.
func (p ProcessPayload) Validate() error {
	if strings.TrimSpace(p.TaskID) == "" {
		return services.Wrap(services.ErrValidation, "process", "payload", "taskId is required", nil)
	}
	return nil
}

func triggerID(kind, taskID, attempt string) string {
	id := kind + ":" + taskID
	if attempt != "" {
		id += ":" + attempt
	}
	return id
}

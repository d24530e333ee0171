package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"meetscribe/internal/config"
	"meetscribe/internal/stage"
)

// ErrNotFound reports a missing object.
var ErrNotFound = errors.New("storage: object not found")

// Bucket stores objects under slash-separated keys.
type Bucket interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	HealthCheck(ctx context.Context) stage.Health
}

// New constructs the configured backend.
func New(cfg config.Storage) (Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.StorageBackendFS:
		return NewFS(cfg.Dir)
	case config.StorageBackendSupabase:
		return NewSupabase(cfg)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// ObjectKey returns the media key for a task. Task ids are unique, so keys never collide.
func ObjectKey(taskID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "bin"
	}
	return "uploads/" + taskID + "." + ext
}

// TranscriptKey returns the transcript artifact key for a task.
func TranscriptKey(taskID string) string {
	return path.Join("artifacts", taskID, "transcript.txt")
}

// SummaryKey returns the summary artifact key for a task.
func SummaryKey(taskID string) string {
	return path.Join("artifacts", taskID, "summary.json")
}

// ValidateKey rejects empty, absolute, and parent-escaping keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("storage: key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return nil
}

package testsupport

import (
	"context"
	"testing"

	"meetscribe/internal/config"
	"meetscribe/internal/tasks"
)

// MustOpenStore opens a tasks.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tasks.Store {
	t.Helper()

	store, err := tasks.Open(cfg)
	if err != nil {
		t.Fatalf("tasks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask inserts an upload_pending task with sensible provenance defaults.
func NewTask(t testing.TB, store *tasks.Store, input tasks.NewTask) *tasks.Task {
	t.Helper()

	if input.OriginalFileName == "" {
		input.OriginalFileName = "meeting.mp4"
	}
	if input.Mimetype == "" {
		input.Mimetype = "video/mp4"
	}
	if input.SourceURL == "" {
		input.SourceURL = "https://files.slack.test/download/meeting.mp4"
	}
	task, err := store.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return task
}

// NewUploadedTask inserts a task and advances it to uploaded with the given storage path.
func NewUploadedTask(t testing.TB, store *tasks.Store, input tasks.NewTask, storagePath string) *tasks.Task {
	t.Helper()

	task := NewTask(t, store, input)
	if err := store.MarkUploaded(context.Background(), task.ID, storagePath); err != nil {
		t.Fatalf("store.MarkUploaded: %v", err)
	}
	reloaded, err := store.Get(context.Background(), task.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("store.Get: %v", err)
	}
	return reloaded
}

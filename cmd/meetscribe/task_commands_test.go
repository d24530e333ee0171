package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"meetscribe/internal/api"
	"meetscribe/internal/summary"
	"meetscribe/internal/tasks"
	"meetscribe/internal/testsupport"
)

func seedCompletedTask(t *testing.T, env *cliTestEnv) *tasks.Task {
	t.Helper()
	ctx := context.Background()

	task := testsupport.NewUploadedTask(t, env.store, tasks.NewTask{
		SourceFileID:     "F-done",
		OriginalFileName: "2025-03-04_tanaka_acme.mp4",
		MeetingDate:      "2025-03-04",
	}, "2025-03-04_tanaka_acme.mp4")
	if err := env.store.BeginProcessing(ctx, task.ID); err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	if err := env.store.SaveTranscript(ctx, task.ID, "田中: 本日はよろしくお願いします"); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	result := summary.Summary{Title: "定例ミーティング", NextSteps: "見積もりを送付"}
	if err := env.store.SaveSummary(ctx, task.ID, result.JSON()); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	if err := env.store.Complete(ctx, task.ID, tasks.PublishResult{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return task
}

func TestTasksListFallsBackToDatabase(t *testing.T) {
	env := setupCLITestEnv(t)
	done := seedCompletedTask(t, env)
	pending := testsupport.NewTask(t, env.store, tasks.NewTask{SourceFileID: "F-pending", OriginalFileName: "weekly.mp4"})

	out, _, err := runCLI(t, env, "tasks", "list")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, done.ID)
	requireContains(t, out, pending.ID)
	requireContains(t, out, "Upload Pending")
	requireContains(t, out, "2025-03-04")

	out, _, err = runCLI(t, env, "tasks", "list", "--status", "completed", "--json")
	if err != nil {
		t.Fatalf("tasks list --json: %v", err)
	}
	var items []api.Task
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].ID != done.ID {
		t.Fatalf("expected only the completed task, got %+v", items)
	}

	if _, _, err := runCLI(t, env, "tasks", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestTasksListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "tasks", "list")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "No tasks found")

	out, _, err = runCLI(t, env, "tasks", "list", "--json")
	if err != nil {
		t.Fatalf("tasks list --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}
}

func TestTasksShowRendersSummary(t *testing.T) {
	env := setupCLITestEnv(t)
	done := seedCompletedTask(t, env)

	out, _, err := runCLI(t, env, "tasks", "show", done.ID)
	if err != nil {
		t.Fatalf("tasks show: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "■ タイトル")
	requireContains(t, out, "見積もりを送付")
	if strings.Contains(out, "本日はよろしく") {
		t.Fatalf("transcript printed without --transcript:\n%s", out)
	}

	out, _, err = runCLI(t, env, "tasks", "show", done.ID, "--transcript")
	if err != nil {
		t.Fatalf("tasks show --transcript: %v", err)
	}
	requireContains(t, out, "本日はよろしく")

	out, _, err = runCLI(t, env, "tasks", "show", done.ID, "--json")
	if err != nil {
		t.Fatalf("tasks show --json: %v", err)
	}
	var item api.Task
	if err := json.Unmarshal([]byte(out), &item); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if item.Status != string(tasks.StatusCompleted) || item.Transcript != "" {
		t.Fatalf("unexpected task payload: %+v", item)
	}

	_, _, err = runCLI(t, env, "tasks", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatsListsEveryStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompletedTask(t, env)

	out, _, err := runCLI(t, env, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, status := range tasks.AllStatuses() {
		requireContains(t, out, formatStatusLabel(string(status)))
	}

	out, _, err = runCLI(t, env, "stats", "--json")
	if err != nil {
		t.Fatalf("stats --json: %v", err)
	}
	var stats api.StatsResponse
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Counts["completed"] != 1 {
		t.Fatalf("expected one completed task, got %v", stats.Counts)
	}
}

func TestResumeWithoutDaemonNeedsDispatcher(t *testing.T) {
	env := setupCLITestEnv(t)
	task := testsupport.NewTask(t, env.store, tasks.NewTask{SourceFileID: "F1"})
	if err := env.store.MarkUploadFailed(context.Background(), task.ID, "download: 500"); err != nil {
		t.Fatalf("mark upload failed: %v", err)
	}

	_, _, err := runCLI(t, env, "resume", task.ID)
	if err == nil || !strings.Contains(err.Error(), "requires a running meetscribed") {
		t.Fatalf("expected daemon required error, got %v", err)
	}
}

func TestResumeThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	done := seedCompletedTask(t, env)
	failed := testsupport.NewTask(t, env.store, tasks.NewTask{SourceFileID: "F-failed"})
	if err := env.store.MarkUploadFailed(context.Background(), failed.ID, "download: 500"); err != nil {
		t.Fatalf("mark upload failed: %v", err)
	}
	env.startDaemon(t)

	out, _, err := runCLI(t, env, "resume", failed.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "resumed (Upload Pending)")

	out, _, err = runCLI(t, env, "resume", done.ID)
	if err != nil {
		t.Fatalf("resume complete task: %v", err)
	}
	requireContains(t, out, "already complete")

	_, _, err = runCLI(t, env, "resume", "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTasksListThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	done := seedCompletedTask(t, env)
	env.startDaemon(t)

	out, _, err := runCLI(t, env, "tasks", "list", "--json")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, done.ID)

	out, _, err = runCLI(t, env, "tasks", "show", done.ID)
	if err != nil {
		t.Fatalf("tasks show: %v", err)
	}
	requireContains(t, out, "定例ミーティング")
}

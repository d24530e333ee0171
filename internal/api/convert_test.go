package api

import (
	"testing"
	"time"

	"meetscribe/internal/stage"
	"meetscribe/internal/tasks"
)

func TestFromTaskSummaryFields(t *testing.T) {
	created := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	task := &tasks.Task{
		ID:                  "t1",
		Status:              tasks.StatusFailed,
		OriginalFileName:    "meeting.mp4",
		TranscriptionResult: "transcript",
		SummaryResult:       "",
		NotionPageID:        "p1, p2",
		ErrorMessage:        "summarize: bad json",
		CreatedAt:           created,
	}

	dto := FromTask(task, false)
	if dto.Status != "failed" || dto.LegacyStatus != "failed" {
		t.Fatalf("unexpected status fields: %q %q", dto.Status, dto.LegacyStatus)
	}
	if !dto.HasTranscript || dto.HasSummary {
		t.Fatalf("unexpected artifact flags: transcript=%v summary=%v", dto.HasTranscript, dto.HasSummary)
	}
	if dto.FailedStep != "summarize" {
		t.Fatalf("expected failed step summarize, got %q", dto.FailedStep)
	}
	if len(dto.NotionPageIDs) != 2 || dto.NotionPageIDs[1] != "p2" {
		t.Fatalf("unexpected page ids: %v", dto.NotionPageIDs)
	}
	if dto.CreatedAt != "2024-05-17T09:30:00.000Z" {
		t.Fatalf("unexpected createdAt: %q", dto.CreatedAt)
	}
	if dto.Transcript != "" {
		t.Fatal("expected transcript omitted without artifacts")
	}
}

func TestFromTaskIncludesArtifacts(t *testing.T) {
	task := &tasks.Task{
		ID:                  "t1",
		Status:              tasks.StatusSummarized,
		TranscriptionResult: "transcript",
		SummaryResult:       `{"title":"x"}`,
	}
	dto := FromTask(task, true)
	if dto.Transcript != "transcript" {
		t.Fatalf("unexpected transcript: %q", dto.Transcript)
	}
	if string(dto.Summary) != `{"title":"x"}` {
		t.Fatalf("unexpected summary: %s", dto.Summary)
	}
	if dto.FailedStep != "" {
		t.Fatalf("expected no failed step for non-failure status, got %q", dto.FailedStep)
	}
}

func TestMergeStatsIncludesEveryStatus(t *testing.T) {
	merged := MergeStats(map[tasks.Status]int{tasks.StatusCompleted: 3})
	if len(merged) != len(tasks.AllStatuses()) {
		t.Fatalf("expected %d keys, got %d", len(tasks.AllStatuses()), len(merged))
	}
	if merged["completed"] != 3 || merged["failed"] != 0 {
		t.Fatalf("unexpected counts: %v", merged)
	}
}

func TestStageHealthSliceSorted(t *testing.T) {
	out := StageHealthSlice([]stage.Health{
		stage.Healthy("task store"),
		stage.Unhealthy("dispatch", "redis down"),
	})
	if len(out) != 2 || out[0].Name != "dispatch" || out[0].Ready {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestSortTasksNewestFirstEmptyIsNotNil(t *testing.T) {
	for _, items := range [][]Task{nil, {}} {
		sorted := SortTasksNewestFirst(items)
		if sorted == nil || len(sorted) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", sorted)
		}
	}
}

func TestSortTasksNewestFirst(t *testing.T) {
	items := []Task{
		{ID: "a", CreatedAt: "2024-05-01T00:00:00.000Z"},
		{ID: "b", CreatedAt: "2024-05-03T00:00:00.000Z"},
		{ID: "c", CreatedAt: "2024-05-03T00:00:00.000Z"},
	}
	sorted := SortTasksNewestFirst(items)
	got := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
}

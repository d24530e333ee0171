package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientRoundTrip(t *testing.T) {
	var lastAuth, lastQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		switch {
		case r.URL.Path == "/api/tasks":
			lastQuery = r.URL.RawQuery
			WriteJSON(w, nil, http.StatusOK, TaskListResponse{Items: []Task{{ID: "t1", Status: "failed"}}})
		case r.URL.Path == "/api/tasks/t1":
			WriteJSON(w, nil, http.StatusOK, TaskResponse{Item: Task{ID: "t1", Transcript: "hello"}})
		case r.URL.Path == "/api/tasks/missing":
			WriteError(w, nil, http.StatusNotFound, "task not found")
		case r.URL.Path == "/api/tasks/t1/resume":
			WriteJSON(w, nil, http.StatusAccepted, ResumeResponse{TaskID: "t1", Status: "transcribed"})
		case r.URL.Path == "/api/tasks/done/resume":
			WriteJSON(w, nil, http.StatusConflict, ResumeResponse{TaskID: "done", Status: "completed", Complete: true})
		case r.URL.Path == "/api/stats":
			WriteJSON(w, nil, http.StatusOK, StatsResponse{Counts: map[string]int{"failed": 1}})
		case r.URL.Path == "/api/health":
			WriteJSON(w, nil, http.StatusServiceUnavailable, HealthResponse{Ready: false, Components: []StageHealth{{Name: "dispatch"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", time.Second)
	ctx := context.Background()

	items, err := client.List(ctx, []string{"failed"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != "t1" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if lastAuth != "Bearer token" {
		t.Fatalf("unexpected auth header %q", lastAuth)
	}
	if lastQuery != "status=failed" {
		t.Fatalf("unexpected query %q", lastQuery)
	}

	task, err := client.Describe(ctx, "t1")
	if err != nil || task == nil || task.Transcript != "hello" {
		t.Fatalf("Describe: %+v %v", task, err)
	}
	missing, err := client.Describe(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil task for 404, got %+v %v", missing, err)
	}

	resumed, err := client.Resume(ctx, "t1")
	if err != nil || resumed.Status != "transcribed" {
		t.Fatalf("Resume: %+v %v", resumed, err)
	}
	if _, err := client.Resume(ctx, "done"); !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("expected ErrAlreadyComplete, got %v", err)
	}

	counts, err := client.Stats(ctx)
	if err != nil || counts["failed"] != 1 {
		t.Fatalf("Stats: %v %v", counts, err)
	}

	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Ready || len(health.Components) != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

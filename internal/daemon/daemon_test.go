package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetscribe/internal/api"
	"meetscribe/internal/config"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/services"
	"meetscribe/internal/storage"
	"meetscribe/internal/tasks"
	"meetscribe/internal/testsupport"
	"meetscribe/internal/workflow"
)

type stageRecorder struct {
	mu        sync.Mutex
	transfers []dispatch.TransferPayload
	processes []dispatch.ProcessPayload
	err       error
}

func (r *stageRecorder) Transfer(_ context.Context, payload dispatch.TransferPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, payload)
	return r.err
}

func (r *stageRecorder) Process(ctx context.Context, payload dispatch.ProcessPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := services.TaskIDFromContext(ctx); !ok || id != payload.TaskID {
		return errors.New("task id missing from context")
	}
	r.processes = append(r.processes, payload)
	return r.err
}

type resumerFunc func(ctx context.Context, id string) (tasks.Status, error)

func (f resumerFunc) Resume(ctx context.Context, id string) (tasks.Status, error) { return f(ctx, id) }

type fixture struct {
	cfg      *config.Config
	store    *tasks.Store
	stages   *stageRecorder
	daemon   *Daemon
	handler  http.Handler
	ingested *int
}

func newFixture(t *testing.T, resumer Resumer) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Dispatch.TriggerToken = "trigger-secret"
	store := testsupport.MustOpenStore(t, cfg)
	bucket, err := storage.NewFS(cfg.Storage.Dir)
	require.NoError(t, err)

	ingested := 0
	stages := &stageRecorder{}
	d, err := New(cfg, Components{
		Store:      store,
		Bucket:     bucket,
		Dispatcher: dispatch.NewNone(logging.NewNop()),
		Ingress: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ingested++
			w.WriteHeader(http.StatusOK)
		}),
		Transfer:  stages,
		Processor: stages,
		Resumer:   resumer,
	}, logging.NewNop())
	require.NoError(t, err)
	return &fixture{cfg: cfg, store: store, stages: stages, daemon: d, handler: d.api.server.Handler, ingested: &ingested}
}

func (f *fixture) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.daemon.Start(ctx))
	t.Cleanup(f.daemon.Stop)

	status := f.daemon.Status()
	assert.True(t, status.Running)
	assert.Equal(t, f.cfg.LockPath(), status.LockFilePath)
	assert.NotEqual(t, "127.0.0.1:0", status.Address)

	require.Error(t, f.daemon.Start(ctx), "second start should fail")

	other, err := New(f.cfg, Components{Store: f.store, Transfer: f.stages, Processor: f.stages}, logging.NewNop())
	require.NoError(t, err)
	err = other.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	client := api.NewClient("http://"+f.daemon.Address(), f.cfg.Server.APIToken, 0)
	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Ready)

	f.daemon.Stop()
	assert.False(t, f.daemon.Status().Running)
}

func TestNewRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	_, err := New(cfg, Components{Store: store}, nil)
	require.Error(t, err)
	_, err = New(nil, Components{}, nil)
	require.Error(t, err)
}

func TestOperatorAPIRequiresToken(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = f.do(t, http.MethodGet, "/api/tasks", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body.Error)
}

func TestHealthReportsComponents(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/health", f.cfg.Server.APIToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	names := make([]string, 0, len(resp.Components))
	for _, c := range resp.Components {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "storage")
	assert.Len(t, resp.Components, 3)

	require.NoError(t, f.store.Close())
	w = f.do(t, http.MethodGet, "/api/health", f.cfg.Server.APIToken, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTaskListingAndDescribe(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testsupport.NewTask(t, f.store, tasks.NewTask{SourceFileID: "F1"})
	uploaded := testsupport.NewUploadedTask(t, f.store, tasks.NewTask{SourceFileID: "F2"}, "meetings/x.mp4")
	require.NoError(t, f.store.BeginProcessing(ctx, uploaded.ID))
	require.NoError(t, f.store.SaveTranscript(ctx, uploaded.ID, "hello world"))

	w := f.do(t, http.MethodGet, "/api/tasks?status=transcribed", f.cfg.Server.APIToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list api.TaskListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, uploaded.ID, list.Items[0].ID)
	assert.Empty(t, list.Items[0].Transcript, "list omits artifact bodies")

	w = f.do(t, http.MethodGet, "/api/tasks?status=bogus", f.cfg.Server.APIToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks/"+uploaded.ID, f.cfg.Server.APIToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var one api.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, "hello world", one.Item.Transcript)

	w = f.do(t, http.MethodGet, "/api/tasks/missing", f.cfg.Server.APIToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/stats", f.cfg.Server.APIToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats api.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Counts[string(tasks.StatusUploadPending)])
	assert.Equal(t, 1, stats.Counts[string(tasks.StatusTranscribed)])
	assert.Equal(t, 0, stats.Counts[string(tasks.StatusFailed)])
}

func TestResumeResponses(t *testing.T) {
	f := newFixture(t, resumerFunc(func(_ context.Context, id string) (tasks.Status, error) {
		switch id {
		case "done":
			return tasks.StatusCompleted, workflow.ErrAlreadyComplete
		case "missing":
			return "", tasks.ErrNotFound
		case "broken":
			return tasks.StatusFailed, services.Wrap(services.ErrTransient, "resume", "dispatch", "redis unavailable", nil)
		default:
			return tasks.StatusTranscribed, nil
		}
	}))
	token := f.cfg.Server.APIToken

	w := f.do(t, http.MethodPost, "/api/tasks/t1/resume", token, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp api.ResumeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, api.ResumeResponse{TaskID: "t1", Status: "transcribed"}, resp)

	w = f.do(t, http.MethodPost, "/api/tasks/done/resume", token, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Complete)

	w = f.do(t, http.MethodPost, "/api/tasks/missing/resume", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/tasks/broken/resume", token, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "redis unavailable")
}

func TestResumeUnavailableWithoutResumer(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/api/tasks/t1/resume", f.cfg.Server.APIToken, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTriggersRunStages(t *testing.T) {
	f := newFixture(t, nil)
	task := testsupport.NewUploadedTask(t, f.store, tasks.NewTask{SourceFileID: "F9"}, "meetings/y.mp4")

	w := f.do(t, http.MethodPost, "/triggers/process", "", `{"taskId":"`+task.ID+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/triggers/process", "trigger-secret", `{"taskId":"`+task.ID+`","storagePath":"meetings/y.mp4"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var ref api.TaskRef
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ref))
	assert.Equal(t, api.TaskRef{TaskID: task.ID, Status: "uploaded"}, ref)

	w = f.do(t, http.MethodPost, "/triggers/transfer", "trigger-secret",
		`{"taskId":"`+task.ID+`","slack_download_url":"https://files.slack.test/a","original_file_name":"a.mp4"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	f.daemon.api.wait()
	require.Len(t, f.stages.processes, 1)
	assert.Equal(t, "meetings/y.mp4", f.stages.processes[0].StoragePath)
	require.Len(t, f.stages.transfers, 1)
	assert.Equal(t, "a.mp4", f.stages.transfers[0].OriginalFileName)

	w = f.do(t, http.MethodPost, "/triggers/transfer", "trigger-secret", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/triggers/transfer", "trigger-secret", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTriggerPayloadValidatedBeforeAccepting(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/triggers/process", "trigger-secret", `{"storagePath":"meetings/y.mp4"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "taskId is required")

	w = f.do(t, http.MethodPost, "/triggers/transfer", "trigger-secret", `{"taskId":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "slack_download_url")

	f.daemon.api.wait()
	assert.Empty(t, f.stages.processes)
	assert.Empty(t, f.stages.transfers)
}

func TestTriggerStageErrorsDoNotChangeAcknowledgement(t *testing.T) {
	f := newFixture(t, nil)
	f.stages.err = errors.New("database is locked")

	w := f.do(t, http.MethodPost, "/triggers/process", "trigger-secret", `{"taskId":"x"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	var ref api.TaskRef
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ref))
	assert.Equal(t, api.TaskRef{TaskID: "x"}, ref)

	f.daemon.api.wait()
	assert.Len(t, f.stages.processes, 1)
}

func TestHTTPDispatcherDeliversToTriggerEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)
	task := testsupport.NewUploadedTask(t, f.store, tasks.NewTask{SourceFileID: "F10"}, "meetings/z.mp4")

	dispatcher := dispatch.NewHTTP(server.URL, "trigger-secret", time.Second, logging.NewNop())
	require.NoError(t, dispatcher.DispatchProcess(context.Background(), dispatch.ProcessPayload{TaskID: task.ID}))
	f.daemon.api.wait()
	require.Len(t, f.stages.processes, 1)

	rejected := dispatch.NewHTTP(server.URL, "wrong-token", time.Second, logging.NewNop())
	err := rejected.DispatchProcess(context.Background(), dispatch.ProcessPayload{TaskID: task.ID})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestSlackEventsRouteIsUnauthenticated(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/slack/events", "", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *f.ingested)
}

func TestRequestIDPropagates(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+f.cfg.Server.APIToken)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

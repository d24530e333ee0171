package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
	"meetscribe/internal/services"
)

type recordingRunner struct {
	mu        sync.Mutex
	transfers []TransferPayload
	processes []ProcessPayload
	taskIDs   []string
}

func (r *recordingRunner) Transfer(ctx context.Context, payload TransferPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, payload)
	if id, ok := services.TaskIDFromContext(ctx); ok {
		r.taskIDs = append(r.taskIDs, id)
	}
	return nil
}

func (r *recordingRunner) Process(_ context.Context, payload ProcessPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processes = append(r.processes, payload)
	return nil
}

func (r *recordingRunner) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers), len(r.processes)
}

func pollUntil(t *testing.T, timeout time.Duration, f func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func redisConfig(t *testing.T) config.Dispatch {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return config.Dispatch{
		Mode:               config.DispatchModeAsynq,
		RedisAddr:          s.Addr(),
		Queue:              "meetscribe-test",
		Concurrency:        2,
		TaskTimeoutSeconds: 30,
	}
}

func TestPayloadValidate(t *testing.T) {
	assert.NoError(t, TransferPayload{TaskID: "t1", DownloadURL: "https://files.slack.com/x"}.Validate())
	assert.ErrorIs(t, TransferPayload{DownloadURL: "https://files.slack.com/x"}.Validate(), services.ErrValidation)
	assert.ErrorIs(t, TransferPayload{TaskID: "t1"}.Validate(), services.ErrValidation)
	assert.ErrorIs(t, TransferPayload{TaskID: "t1", DownloadURL: "ftp://host/x"}.Validate(), services.ErrValidation)
	assert.NoError(t, ProcessPayload{TaskID: "t1"}.Validate())
	assert.ErrorIs(t, ProcessPayload{StoragePath: "uploads/x.mp4"}.Validate(), services.ErrValidation)
}

func TestPayloadWireNames(t *testing.T) {
	encoded, err := json.Marshal(TransferPayload{
		TaskID:           "t1",
		DownloadURL:      "https://files.slack.com/x",
		OriginalFileName: "meeting.mp4",
		Mimetype:         "video/mp4",
		Filetype:         "mp4",
	})
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	for _, key := range []string{"taskId", "slack_download_url", "original_file_name", "mimetype", "filetype"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "attempt")
}

func TestWorkerRunsEnqueuedStages(t *testing.T) {
	cfg := redisConfig(t)
	runner := &recordingRunner{}
	worker := NewWorker(cfg, runner, runner, logging.NewNop())
	require.NoError(t, worker.Start())
	t.Cleanup(worker.Shutdown)

	dispatcher := NewAsynq(cfg, logging.NewNop())
	t.Cleanup(func() { _ = dispatcher.Close() })

	ctx := context.Background()
	require.NoError(t, dispatcher.DispatchTransfer(ctx, TransferPayload{TaskID: "task-1", DownloadURL: "https://files.slack.com/a"}))
	require.NoError(t, dispatcher.DispatchProcess(ctx, ProcessPayload{TaskID: "task-1", StoragePath: "uploads/task-1.mp4"}))

	pollUntil(t, 5*time.Second, func() bool {
		transfers, processes := runner.counts()
		return transfers == 1 && processes == 1
	})
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, "https://files.slack.com/a", runner.transfers[0].DownloadURL)
	assert.Equal(t, "uploads/task-1.mp4", runner.processes[0].StoragePath)
	assert.Equal(t, []string{"task-1"}, runner.taskIDs)
}

func TestAsynqSuppressesDuplicateTriggers(t *testing.T) {
	cfg := redisConfig(t)
	dispatcher := NewAsynq(cfg, logging.NewNop())
	t.Cleanup(func() { _ = dispatcher.Close() })

	ctx := context.Background()
	payload := ProcessPayload{TaskID: "task-2"}
	require.NoError(t, dispatcher.DispatchProcess(ctx, payload))
	require.NoError(t, dispatcher.DispatchProcess(ctx, payload))

	payload.Attempt = "resume-1"
	require.NoError(t, dispatcher.DispatchProcess(ctx, payload))

	inspector := asynq.NewInspector(RedisOpt(cfg))
	t.Cleanup(func() { _ = inspector.Close() })
	pending, err := inspector.ListPendingTasks(cfg.Queue)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	ids := []string{pending[0].ID, pending[1].ID}
	assert.ElementsMatch(t, []string{"process:task-2", "process:task-2:resume-1"}, ids)
	assert.Equal(t, 0, pending[0].MaxRetry)
}

func TestAsynqHealthCheck(t *testing.T) {
	cfg := redisConfig(t)
	dispatcher := NewAsynq(cfg, logging.NewNop())
	t.Cleanup(func() { _ = dispatcher.Close() })
	assert.True(t, dispatcher.HealthCheck(context.Background()).Ready)

	down := NewAsynq(config.Dispatch{RedisAddr: "127.0.0.1:1"}, logging.NewNop())
	t.Cleanup(func() { _ = down.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.False(t, down.HealthCheck(ctx).Ready)
}

func TestHTTPDispatcherPostsTriggers(t *testing.T) {
	var (
		mu       sync.Mutex
		paths    []string
		auth     []string
		received []map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		auth = append(auth, r.Header.Get("Authorization"))
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	dispatcher := NewHTTP(server.URL+"/", "secret", 5*time.Second, logging.NewNop())
	ctx := context.Background()
	require.NoError(t, dispatcher.DispatchTransfer(ctx, TransferPayload{TaskID: "t1", DownloadURL: "https://files.slack.com/a"}))
	require.NoError(t, dispatcher.DispatchProcess(ctx, ProcessPayload{TaskID: "t1"}))
	require.NoError(t, dispatcher.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"/triggers/transfer", "/triggers/process"}, paths)
	assert.Equal(t, []string{"Bearer secret", "Bearer secret"}, auth)
	for _, body := range received {
		assert.Equal(t, "t1", body["taskId"])
	}
}

func TestHTTPDispatcherReturnsDeliveryFailures(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnauthorized)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", int(status.Load()))
	}))
	defer server.Close()
	dispatcher := NewHTTP(server.URL, "secret", time.Second, logging.NewNop())
	ctx := context.Background()

	err := dispatcher.DispatchTransfer(ctx, TransferPayload{TaskID: "t1", DownloadURL: "https://files.slack.com/a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	assert.Contains(t, err.Error(), "401")

	status.Store(http.StatusBadGateway)
	err = dispatcher.DispatchProcess(ctx, ProcessPayload{TaskID: "t1"})
	assert.ErrorIs(t, err, services.ErrTransient)

	unreachable := NewHTTP("http://127.0.0.1:1", "", 200*time.Millisecond, logging.NewNop())
	err = unreachable.DispatchProcess(ctx, ProcessPayload{TaskID: "t1"})
	assert.ErrorIs(t, err, services.ErrTransient)
}

func TestHTTPDispatcherRejectsInvalidPayload(t *testing.T) {
	dispatcher := NewHTTP("http://127.0.0.1:1", "", time.Second, logging.NewNop())
	err := dispatcher.DispatchTransfer(context.Background(), TransferPayload{TaskID: "t1"})
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.NoError(t, dispatcher.Close())
}

func TestNewSelectsMode(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.Mode = config.DispatchModeNone
	d, err := New(&cfg, logging.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &None{}, d)
	assert.NoError(t, d.DispatchProcess(context.Background(), ProcessPayload{TaskID: "t1"}))

	cfg.Dispatch.Mode = config.DispatchModeHTTP
	cfg.Dispatch.TriggerBaseURL = "http://127.0.0.1:8080"
	d, err = New(&cfg, logging.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, d)

	cfg.Dispatch.Mode = "carrier-pigeon"
	_, err = New(&cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestDecodePayloadSkipsRetry(t *testing.T) {
	var payload ProcessPayload
	err := decodePayload(asynq.NewTask(TypeProcess, []byte("{")), &payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetscribe/internal/api"
	"meetscribe/internal/config"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/services"
	"meetscribe/internal/tasks"
	"meetscribe/internal/workflow"
)

const (
	maxTriggerBody     = 64 << 10
	defaultTaskTimeout = time.Hour
	requestIDHeader    = "X-Request-ID"
)

type apiServer struct {
	bind        string
	logger      *slog.Logger
	daemon      *Daemon
	taskSvc     *api.TaskService
	taskTimeout time.Duration

	baseCtx  context.Context
	inflight sync.WaitGroup

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	timeout := time.Duration(cfg.Dispatch.TaskTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	srv := &apiServer{
		bind:        strings.TrimSpace(cfg.Server.Bind),
		logger:      logging.NewComponentLogger(logger, "api"),
		daemon:      d,
		taskSvc:     api.NewTaskService(d.components.Store),
		taskTimeout: timeout,
		baseCtx:     context.Background(),
	}

	mux := http.NewServeMux()
	if d.components.Ingress != nil {
		mux.Handle("/slack/events", d.components.Ingress)
	}
	triggerAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Dispatch.TriggerToken, srv.logger, next)
	}
	operatorAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Server.APIToken, srv.logger, next)
	}
	mux.HandleFunc("POST /triggers/transfer", triggerAuth(srv.handleTransferTrigger))
	mux.HandleFunc("POST /triggers/process", triggerAuth(srv.handleProcessTrigger))
	mux.HandleFunc("GET /api/health", operatorAuth(srv.handleHealth))
	mux.HandleFunc("GET /api/stats", operatorAuth(srv.handleStats))
	mux.HandleFunc("GET /api/tasks", operatorAuth(srv.handleTasks))
	mux.HandleFunc("GET /api/tasks/{id}", operatorAuth(srv.handleTask))
	mux.HandleFunc("POST /api/tasks/{id}/resume", operatorAuth(srv.handleResume))

	srv.server = &http.Server{
		Handler:           withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// withRequestID tags each request context with a correlation id, reusing the
// caller's X-Request-ID when present.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.baseCtx = ctx

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.inflight.Wait()
}

// wait blocks until every accepted trigger has finished running.
func (s *apiServer) wait() {
	s.inflight.Wait()
}

func (s *apiServer) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleTransferTrigger(w http.ResponseWriter, r *http.Request) {
	var payload dispatch.TransferPayload
	if !s.decodeTrigger(w, r, &payload, func() error { return payload.Validate() }) {
		return
	}
	s.runTrigger(w, r, "transfer", payload.TaskID, func(ctx context.Context) error {
		return s.daemon.components.Transfer.Transfer(ctx, payload)
	})
}

func (s *apiServer) handleProcessTrigger(w http.ResponseWriter, r *http.Request) {
	var payload dispatch.ProcessPayload
	if !s.decodeTrigger(w, r, &payload, func() error { return payload.Validate() }) {
		return
	}
	s.runTrigger(w, r, "process", payload.TaskID, func(ctx context.Context) error {
		return s.daemon.components.Processor.Process(ctx, payload)
	})
}

func (s *apiServer) decodeTrigger(w http.ResponseWriter, r *http.Request, target any, validate func() error) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTriggerBody))
	if err != nil {
		api.WriteError(w, s.logger, http.StatusBadRequest, "read body: "+err.Error())
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		api.WriteError(w, s.logger, http.StatusBadRequest, "invalid trigger payload")
		return false
	}
	if err := validate(); err != nil {
		api.WriteError(w, s.logger, http.StatusBadRequest, services.Details(err).Message)
		return false
	}
	return true
}

// runTrigger acknowledges the trigger with 202 and the task's current status,
// then runs the stage in the background. Stage runs end with the daemon or after
// the task timeout; the stages record their own failures on the task.
func (s *apiServer) runTrigger(w http.ResponseWriter, r *http.Request, stageName, taskID string, run func(context.Context) error) {
	ctx := services.WithStage(services.WithTaskID(s.baseCtx, taskID), stageName)
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		ctx = services.WithRequestID(ctx, id)
	}
	ref := api.TaskRef{TaskID: taskID}
	if task, err := s.daemon.components.Store.Get(r.Context(), taskID); err == nil && task != nil {
		ref.Status = string(task.Status)
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		runCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
		if err := run(runCtx); err != nil {
			logging.WarnWithContext(logging.WithContext(runCtx, s.logger), "stage trigger failed", "trigger_failed",
				logging.ErrorKind(err),
				logging.Error(err),
			)
		}
	}()
	api.WriteJSON(w, s.logger, http.StatusAccepted, ref)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, ready := s.daemon.Health(r.Context())
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, s.logger, status, api.HealthResponse{
		Ready:      ready,
		Components: api.StageHealthSlice(results),
	})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.taskSvc.Stats(r.Context())
	if err != nil {
		api.WriteError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteJSON(w, s.logger, http.StatusOK, api.StatsResponse{Counts: counts})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["status"]
	statuses := api.ParseStatuses(raw)
	if len(raw) > 0 && len(statuses) == 0 {
		api.WriteError(w, s.logger, http.StatusBadRequest, "unknown status filter")
		return
	}
	items, err := s.taskSvc.List(r.Context(), statuses...)
	if err != nil {
		api.WriteError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []api.Task{}
	}
	api.WriteJSON(w, s.logger, http.StatusOK, api.TaskListResponse{Items: items})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	item, err := s.taskSvc.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		api.WriteError(w, s.logger, http.StatusNotFound, "task not found")
		return
	}
	api.WriteJSON(w, s.logger, http.StatusOK, api.TaskResponse{Item: *item})
}

func (s *apiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.daemon.components.Resumer == nil {
		api.WriteError(w, s.logger, http.StatusServiceUnavailable, "resume unavailable")
		return
	}
	ctx := services.WithTaskID(r.Context(), id)
	status, err := s.daemon.components.Resumer.Resume(ctx, id)
	switch {
	case err == nil:
		api.WriteJSON(w, s.logger, http.StatusAccepted, api.ResumeResponse{TaskID: id, Status: string(status)})
	case errors.Is(err, workflow.ErrAlreadyComplete):
		api.WriteJSON(w, s.logger, http.StatusConflict, api.ResumeResponse{TaskID: id, Status: string(status), Complete: true})
	case errors.Is(err, tasks.ErrNotFound):
		api.WriteError(w, s.logger, http.StatusNotFound, "task not found")
	case errors.Is(err, tasks.ErrConflict), errors.Is(err, tasks.ErrClaimed):
		api.WriteError(w, s.logger, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrConfiguration):
		api.WriteError(w, s.logger, http.StatusServiceUnavailable, services.Details(err).Message)
	default:
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "resume failed", "resume_failed",
			logging.Status(status),
			logging.Error(err),
		)
		api.WriteError(w, s.logger, http.StatusBadGateway, services.Details(err).Message)
	}
}

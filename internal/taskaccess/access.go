package taskaccess

import (
	"context"
	"errors"
	"log/slog"

	"meetscribe/internal/api"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/tasks"
	"meetscribe/internal/workflow"
)

// ErrDaemonRequired is returned when an operation cannot run against the
// database alone.
var ErrDaemonRequired = errors.New("operation requires a running meetscribed (or dispatch.mode = asynq)")

// Access provides task operations regardless of daemon API or direct store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.Task, error)
	Describe(ctx context.Context, id string) (*api.Task, error)
	Resume(ctx context.Context, id string) (api.ResumeResponse, error)
}

// NewAPIAccess returns an Access backed by the daemon operator API.
func NewAPIAccess(client *api.Client) Access {
	return &apiAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access. dispatcher may
// be nil, in which case Resume reports ErrDaemonRequired.
func NewStoreAccess(store *tasks.Store, dispatcher dispatch.Dispatcher, logger *slog.Logger) Access {
	access := &storeAccess{service: api.NewTaskService(store)}
	if dispatcher != nil {
		access.resumer = workflow.New(workflow.Deps{Store: store, Dispatcher: dispatcher}, logger)
	}
	return access
}

type apiAccess struct {
	client *api.Client
}

func (a *apiAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.client.Stats(ctx)
}

func (a *apiAccess) List(ctx context.Context, statuses []string) ([]api.Task, error) {
	return a.client.List(ctx, statuses)
}

func (a *apiAccess) Describe(ctx context.Context, id string) (*api.Task, error) {
	return a.client.Describe(ctx, id)
}

func (a *apiAccess) Resume(ctx context.Context, id string) (api.ResumeResponse, error) {
	resp, err := a.client.Resume(ctx, id)
	if errors.Is(err, api.ErrTaskNotFound) {
		return resp, tasks.ErrNotFound
	}
	if errors.Is(err, api.ErrAlreadyComplete) {
		return resp, workflow.ErrAlreadyComplete
	}
	return resp, err
}

type storeAccess struct {
	service *api.TaskService
	resumer *workflow.Orchestrator
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.Task, error) {
	return a.service.List(ctx, api.ParseStatuses(statuses)...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.Task, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Resume(ctx context.Context, id string) (api.ResumeResponse, error) {
	if a.resumer == nil {
		return api.ResumeResponse{}, ErrDaemonRequired
	}
	status, err := a.resumer.Resume(ctx, id)
	resp := api.ResumeResponse{TaskID: id, Status: string(status)}
	if errors.Is(err, workflow.ErrAlreadyComplete) {
		resp.Complete = true
	}
	return resp, err
}

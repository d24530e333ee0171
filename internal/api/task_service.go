package api

import (
	"context"

	"meetscribe/internal/tasks"
)

// TaskReader abstracts task persistence interactions needed for API queries.
type TaskReader interface {
	List(ctx context.Context, statuses ...tasks.Status) ([]*tasks.Task, error)
	Stats(ctx context.Context) (map[tasks.Status]int, error)
	Get(ctx context.Context, id string) (*tasks.Task, error)
}

// TaskService exposes read-only task operations returning API DTOs.
type TaskService struct {
	store TaskReader
}

// NewTaskService constructs a TaskService around the provided reader.
func NewTaskService(store TaskReader) *TaskService {
	if store == nil {
		return nil
	}
	return &TaskService{store: store}
}

// List returns tasks filtered by status, newest first.
func (s *TaskService) List(ctx context.Context, statuses ...tasks.Status) ([]Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return SortTasksNewestFirst(FromTasks(items)), nil
}

// Stats returns task counts keyed by status string.
func (s *TaskService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

// Describe fetches a single task including artifact bodies.
func (s *TaskService) Describe(ctx context.Context, id string) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.Get(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromTask(item, true)
	return &dto, nil
}

// ParseStatuses converts filter strings to statuses, dropping unknown values.
func ParseStatuses(values []string) []tasks.Status {
	var out []tasks.Status
	for _, value := range values {
		if status, ok := tasks.ParseStatus(value); ok {
			out = append(out, status)
		}
	}
	return out
}

package tasks

import "errors"

var (
	// ErrNotFound is returned when a mutation targets a task id that does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrConflict is returned when a task is not in a status the mutation may leave.
	ErrConflict = errors.New("task status conflict")
	// ErrDuplicate is returned when a source file has already been ingested.
	ErrDuplicate = errors.New("task already exists for source file")
	// ErrClaimed is returned when another run holds an unexpired processing claim.
	ErrClaimed = errors.New("task claimed by another run")
	// ErrInvalid is returned for task fields that fail validation.
	ErrInvalid = errors.New("invalid task")
)

// Package api defines wire-format types and converters for the HTTP operator
// API. It translates tasks.Task records into transport-friendly DTOs that the
// meetscribe CLI and other consumers can render without coupling to internal
// types.
//
// # Key Types
//
// Task: transport representation of a pipeline task with provenance, artifact
// presence, and the failed step for failure states. Transcript and summary bodies
// are included only in single-task responses.
//
// HealthResponse: aggregated readiness of the task store, storage, and dispatcher.
//
// # Converters
//
// FromTask: tasks.Task -> Task, optionally including artifact bodies.
//
// MergeStats: status-keyed counts -> string-keyed counts with every status present.
//
// StageHealthSlice: deterministic ordering of health records.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are exposed as their stored lowercase
// strings. Timestamps use RFC3339 with milliseconds. The stored summary is
// passed through as json.RawMessage to avoid double-encoding.
package api

// Package tasks persists pipeline tasks in SQLite and owns their state machine.
//
// A Task is the only state shared between the ingress, transfer, and processing
// stages; no process memory survives between them. Every mutation is a single
// compare-and-set UPDATE keyed on the task id and the statuses it may leave, so
// a stage can only advance a task it currently owns and never regresses another
// stage's artifact columns. Zero-row updates surface as ErrConflict or ErrNotFound.
//
// The schema is embedded from schema.sql. Schema changes bump schemaVersion in
// schema.go; a mismatched database is rejected with ErrSchemaMismatch.
package tasks

// Package daemon coordinates the long-running meetscribed process.
//
// It owns a flock-based single-instance lock, the HTTP listener that serves
// Slack events, stage triggers, and the operator API, and (in asynq dispatch
// mode) the background worker that consumes stage tasks from Redis. Pipeline
// behaviour lives in the ingress, transfer, and workflow packages; the daemon
// only wires them to transports and manages startup and shutdown.
package daemon

// Package workflow runs the processing chain for one task: acquire media,
// transcribe, summarize, publish, notify.
//
// Each step writes a durable checkpoint, so a re-run of a failed or interrupted
// task starts at the first step whose result is missing. The store's
// compare-and-set transitions decide who may advance a task; the orchestrator
// holds no locks of its own.
package workflow

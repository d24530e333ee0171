// Package transfer moves a shared Slack file into durable storage.
//
// The stage streams the private download straight into the storage bucket,
// records the object key on the task, and dispatches the processing trigger. A
// failure marks the task upload_failed and sends one failure notification; the
// stage never retries on its own.
package transfer

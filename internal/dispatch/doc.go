// Package dispatch chains pipeline stages together.
//
// Ingress dispatches a transfer trigger after creating a task; the transfer
// stage dispatches a process trigger once the media is stored. Three
// Dispatcher implementations exist:
//
//   - asynq: enqueue onto Redis; the daemon's Worker runs the stage. Tasks use
//     MaxRetry(0) so a failure stays terminal until an operator resumes it,
//     and a deterministic asynq task id per stage and task suppresses
//     duplicate triggers.
//   - http: POST the payload to the trigger endpoints of a meetscribe daemon,
//     mirroring webhook-driven serverless deployments. The endpoint answers
//     202 once it has accepted the trigger; anything else is returned to the
//     dispatching stage, which records the failure on the task.
//   - none: record nothing and log; tasks advance only through resume.
package dispatch

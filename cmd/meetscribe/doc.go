// Package main hosts the meetscribe operator CLI.
//
// Commands talk to the daemon's operator API when it answers and fall back to
// reading the task database directly otherwise, so listing and inspecting tasks
// works while meetscribed is down. Resuming a task needs either the daemon or
// an asynq dispatcher the CLI can enqueue to itself.
package main

package main

import (
	"strings"
	"testing"
)

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "No tasks recorded")
}

func TestStatusAndHealthWithDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompletedTask(t, env)
	env.startDaemon(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK]")
	requireContains(t, out, "task store")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, env, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "Components")
	requireContains(t, out, "task store")
}

func TestHealthRequiresDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "health")
	if err == nil || !strings.Contains(err.Error(), "daemon not reachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestStartReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	out, _, err := runCLI(t, env, "start")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

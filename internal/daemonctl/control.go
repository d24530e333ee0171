package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"meetscribe/internal/api"
	"meetscribe/internal/config"
	"meetscribe/internal/daemonrun"
	"meetscribe/internal/taskaccess"
	"meetscribe/internal/tasks"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates no live daemon process was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached meetscribe daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// Reachable reports whether the daemon operator API answers.
func Reachable(ctx context.Context, client *api.Client) bool {
	if client == nil {
		return false
	}
	_, err := client.Health(ctx)
	return err == nil
}

// WaitForAPI polls the operator API until it answers or timeout elapses.
func WaitForAPI(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		_, err := client.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless it already answers.
func EnsureStarted(ctx context.Context, client *api.Client, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if Reachable(ctx, client) {
		_, pid := ProcessInfo(cfg)
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForAPI(ctx, client, waitTimeout); err != nil {
		return StartResult{}, err
	}
	_, pid := ProcessInfo(cfg)
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// ProcessInfo reports whether the pid file names a live process.
func ProcessInfo(cfg *config.Config) (bool, int) {
	if cfg == nil {
		return false, 0
	}
	pid, err := readPID(daemonrun.PIDPath(cfg))
	if err != nil || pid <= 0 {
		return false, 0
	}
	return processAlive(pid), pid
}

// StopAndTerminate sends SIGTERM to the daemon and SIGKILL if it is still alive
// after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	alive, pid := ProcessInfo(cfg)
	if !alive {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{PID: pid}
	if waitForExit(pid, gracePeriod) {
		return result, nil
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	pidPath := daemonrun.PIDPath(cfg)
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	_ = os.Remove(cfg.LockPath())
	result.ForcedKill = true
	return result, nil
}

// Snapshot is the combined view printed by `meetscribe status`.
type Snapshot struct {
	Running bool
	PID     int
	Source  taskaccess.Source
	Health  *api.HealthResponse
	Counts  map[string]int
}

// BuildStatusSnapshot collects daemon health and task counts, falling back to
// the database when the daemon does not answer.
func BuildStatusSnapshot(ctx context.Context, client *api.Client, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &Snapshot{}
	snapshot.Running, snapshot.PID = ProcessInfo(cfg)

	if client != nil {
		if health, err := client.Health(ctx); err == nil {
			snapshot.Running = true
			snapshot.Health = health
			if counts, err := client.Stats(ctx); err == nil {
				snapshot.Source = taskaccess.SourceDaemon
				snapshot.Counts = counts
				return snapshot, nil
			}
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := tasks.Open(cfg)
	if err != nil {
		return snapshot, nil
	}
	defer store.Close()
	counts, err := taskaccess.NewStoreAccess(store, nil, nil).Stats(queryCtx)
	if err == nil {
		snapshot.Source = taskaccess.SourceDatabase
		snapshot.Counts = counts
	}
	return snapshot, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !processAlive(pid)
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gofrs/flock"

	"meetscribe/internal/config"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/logging"
	"meetscribe/internal/stage"
	"meetscribe/internal/tasks"
)

// Resumer restarts a stalled or failed task from its checkpoint.
type Resumer interface {
	Resume(ctx context.Context, taskID string) (tasks.Status, error)
}

// Components are the pipeline pieces served by the daemon.
type Components struct {
	Store      *tasks.Store
	Bucket     stage.Checker
	Dispatcher dispatch.Dispatcher
	Ingress    http.Handler
	Transfer   dispatch.TransferRunner
	Processor  dispatch.ProcessRunner
	Resumer    Resumer
}

// Daemon serves the HTTP surfaces and the stage worker under a single-instance lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components Components

	lockPath string
	lock     *flock.Flock

	api    *apiServer
	worker *dispatch.Worker

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	DispatchMode string
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon around the wired components.
func New(cfg *config.Config, components Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || components.Store == nil {
		return nil, errors.New("daemon requires config and task store")
	}
	if components.Transfer == nil || components.Processor == nil {
		return nil, errors.New("daemon requires transfer and process stages")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		components: components,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	if cfg.Dispatch.Mode == config.DispatchModeAsynq {
		d.worker = dispatch.NewWorker(cfg.Dispatch, components.Transfer, components.Processor, logger)
	}
	return d, nil
}

// Start acquires the daemon lock, opens the listener, and starts the worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another meetscribed instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if d.worker != nil {
		if err := d.worker.Start(); err != nil {
			cancel()
			d.api.stop()
			_ = d.lock.Unlock()
			return fmt.Errorf("start worker: %w", err)
		}
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("meetscribe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.String("dispatch_mode", d.cfg.Dispatch.Mode),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.worker != nil {
		d.worker.Shutdown()
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("meetscribe daemon stopped")
}

// Close stops the daemon and releases the dispatcher and task store.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.components.Dispatcher != nil {
		errs = append(errs, d.components.Dispatcher.Close())
	}
	errs = append(errs, d.components.Store.Close())
	return errors.Join(errs...)
}

// Address returns the bound listener address, or the configured bind before Start.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Health reports readiness of the store, object storage, and dispatcher.
func (d *Daemon) Health(ctx context.Context) ([]stage.Health, bool) {
	checkers := []stage.Checker{d.components.Store}
	if d.components.Bucket != nil {
		checkers = append(checkers, d.components.Bucket)
	}
	if d.components.Dispatcher != nil {
		checkers = append(checkers, d.components.Dispatcher)
	}
	return stage.CheckAll(ctx, checkers...)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.api.address(),
		DispatchMode: d.cfg.Dispatch.Mode,
		DatabasePath: d.components.Store.Path(),
		LockFilePath: d.lockPath,
	}
}

package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"meetscribe/internal/config"
	"meetscribe/internal/daemon"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/ingress"
	"meetscribe/internal/logging"
	"meetscribe/internal/notifications"
	"meetscribe/internal/services/assemblyai"
	"meetscribe/internal/services/llm"
	"meetscribe/internal/services/notion"
	"meetscribe/internal/services/slack"
	"meetscribe/internal/storage"
	"meetscribe/internal/summary"
	"meetscribe/internal/tasks"
	"meetscribe/internal/transfer"
	"meetscribe/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// PIDPath returns the pid file written while the daemon runs.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "meetscribed.pid")
}

// Run starts the meetscribe daemon and blocks until the context ends or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.ValidateDaemon(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		FilePath:    filepath.Join(cfg.Paths.LogDir, "meetscribe.log"),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	d, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build daemon", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check server.bind and that no other meetscribed holds the lock"),
		)
		return err
	}

	// Written only after Start holds the data-dir lock.
	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("meetscribe daemon shutting down")
	return nil
}

// Build wires every pipeline component into a daemon. The caller owns the
// returned daemon and must Close it.
func Build(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := tasks.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	bucket, err := storage.New(cfg.Storage)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}
	dispatcher, err := dispatch.New(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	slackClient := slack.NewClient(cfg.Slack)
	notifier := notifications.NewService(cfg, slackClient, logger)

	transferStage := transfer.New(store, slackClient, bucket, dispatcher, notifier, logger)
	orchestrator := workflow.New(workflow.Deps{
		Store:         store,
		Bucket:        bucket,
		Transcriber:   assemblyai.New(cfg.Transcription),
		Summarizer:    summary.NewSummarizer(llm.NewClient(llm.FromConfig(cfg.LLM))),
		Publisher:     notion.NewPublisher(cfg.Notion, logger),
		Dispatcher:    dispatcher,
		Notifier:      notifier,
		PreviewLength: cfg.Notifications.PreviewLength,
		ClaimTTL:      time.Duration(cfg.Dispatch.TaskTimeoutSeconds) * time.Second,
	}, logger)

	d, err := daemon.New(cfg, daemon.Components{
		Store:      store,
		Bucket:     bucket,
		Dispatcher: dispatcher,
		Ingress:    ingress.NewHandler(cfg.Slack, store, slackClient, dispatcher, notifier, logger),
		Transfer:   transferStage,
		Processor:  orchestrator,
		Resumer:    orchestrator,
	}, logger)
	if err != nil {
		_ = dispatcher.Close()
		_ = store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("bind", cfg.Server.Bind),
		logging.String("dispatch_mode", cfg.Dispatch.Mode),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("notion_enabled", cfg.Notion.Enabled),
		logging.Int("notion_destinations", len(cfg.Notion.Destinations)),
		logging.Bool("slack_notifications", cfg.Notifications.SlackEnabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("operator_token_set", strings.TrimSpace(cfg.Server.APIToken) != ""),
	)
}

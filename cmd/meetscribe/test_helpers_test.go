package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"meetscribe/internal/config"
	"meetscribe/internal/daemon"
	"meetscribe/internal/daemonrun"
	"meetscribe/internal/logging"
	"meetscribe/internal/tasks"
	"meetscribe/internal/testsupport"
)

// unreachableAPI forces every command onto the database fallback.
const unreachableAPI = "http://127.0.0.1:1"

type cliTestEnv struct {
	cfg        *config.Config
	store      *tasks.Store
	configPath string
	apiURL     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "meetscribe.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
		apiURL:     unreachableAPI,
	}
}

// startDaemon serves the operator API for env and points the CLI at it.
func (env *cliTestEnv) startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	d, err := daemonrun.Build(env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemonrun.Build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
		d.Close()
	})
	env.apiURL = "http://" + d.Address()
	return d
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	full := append([]string{"--config", env.configPath, "--api-url", env.apiURL}, args...)
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

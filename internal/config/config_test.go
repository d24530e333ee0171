package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"meetscribe/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SLACK_SIGNING_SECRET", "secret")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("ASSEMBLYAI_API_KEY", "aai")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "meetscribe")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "meetscribe.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Storage.Dir != filepath.Join(wantData, "objects") {
		t.Fatalf("unexpected storage dir: %q", cfg.Storage.Dir)
	}
	if cfg.Slack.SigningSecret != "secret" || cfg.Slack.BotToken != "xoxb-test" {
		t.Fatalf("expected slack credentials from env, got %+v", cfg.Slack)
	}
	if cfg.Transcription.APIKey != "aai" || cfg.LLM.APIKey != "or-key" {
		t.Fatal("expected vendor keys from env")
	}
	if cfg.Slack.TimestampToleranceSeconds != 300 {
		t.Fatalf("unexpected timestamp tolerance: %d", cfg.Slack.TimestampToleranceSeconds)
	}
	if cfg.Dispatch.Mode != config.DispatchModeAsynq {
		t.Fatalf("unexpected dispatch mode: %q", cfg.Dispatch.Mode)
	}
	if cfg.Notion.Enabled {
		t.Fatal("expected notion disabled by default")
	}
	if err := cfg.ValidateDaemon(); err != nil {
		t.Fatalf("ValidateDaemon: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Storage.Dir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "meetscribe.toml")

	custom := config.Default()
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Notion.Enabled = true
	custom.Notion.APIKey = "secret_notion"
	custom.Notion.Destinations = []config.NotionDestination{
		{Name: "internal", DatabaseID: "db-1", IncludeConsultant: true, IncludeClient: true},
		{DatabaseID: "db-2", IncludeClient: true},
	}
	custom.Dispatch.Mode = "HTTP"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Dispatch.Mode != config.DispatchModeHTTP {
		t.Fatalf("expected lowercase dispatch mode, got %q", cfg.Dispatch.Mode)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if len(cfg.Notion.Destinations) != 2 {
		t.Fatalf("expected two destinations, got %d", len(cfg.Notion.Destinations))
	}
	if cfg.Notion.Destinations[1].Name != "destination-2" {
		t.Fatalf("expected generated destination name, got %q", cfg.Notion.Destinations[1].Name)
	}
	if !strings.HasPrefix(cfg.TriggerBaseURL(), "http://127.0.0.1") {
		t.Fatalf("unexpected trigger base url: %q", cfg.TriggerBaseURL())
	}
}

func TestValidateRejectsInvalidSections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown storage backend",
			mutate: func(c *config.Config) { c.Storage.Backend = "s3" },
			want:   "storage.backend",
		},
		{
			name: "supabase without key",
			mutate: func(c *config.Config) {
				c.Storage.Backend = config.StorageBackendSupabase
				c.Storage.BaseURL = "https://example.supabase.co"
			},
			want: "storage.service_key",
		},
		{
			name: "too many notion destinations",
			mutate: func(c *config.Config) {
				c.Notion.Enabled = true
				c.Notion.APIKey = "k"
				for i := 0; i < 4; i++ {
					c.Notion.Destinations = append(c.Notion.Destinations, config.NotionDestination{
						Name:       string(rune('a' + i)),
						DatabaseID: "db",
					})
				}
			},
			want: "at most 3",
		},
		{
			name:   "unknown dispatch mode",
			mutate: func(c *config.Config) { c.Dispatch.Mode = "kafka" },
			want:   "dispatch.mode",
		},
		{
			name:   "zero preview length",
			mutate: func(c *config.Config) { c.Notifications.PreviewLength = 0 },
			want:   "notifications.preview_length",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateDaemonRequiresCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	err := cfg.ValidateDaemon()
	if err == nil || !strings.Contains(err.Error(), "slack.signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"meetscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults credentials to harmless values and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Dir = filepath.Join(base, "objects")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.APIToken = "test-token"
	cfgVal.Slack.BotToken = "xoxb-test"
	cfgVal.Slack.SigningSecret = "test-signing-secret"
	cfgVal.Slack.NotifyChannel = "C000NOTIFY"
	cfgVal.Transcription.APIKey = "aai-test"
	cfgVal.LLM.APIKey = "llm-test"
	cfgVal.Dispatch.Mode = config.DispatchModeNone

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSlackAPI points the Slack adapter at a test server.
func WithSlackAPI(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Slack.APIBaseURL = baseURL
	}
}

// WithNotion enables Notion publishing against a test server.
func WithNotion(baseURL string, destinations ...config.NotionDestination) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notion.Enabled = true
		b.cfg.Notion.APIKey = "secret_test"
		b.cfg.Notion.BaseURL = baseURL
		b.cfg.Notion.Destinations = destinations
	}
}

// WithDispatchMode overrides the trigger chain mode.
func WithDispatchMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dispatch.Mode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

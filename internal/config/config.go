package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations for the task database, logs, and locks.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server contains the HTTP listener configuration.
type Server struct {
	Bind     string `toml:"bind"`
	APIToken string `toml:"api_token"`
	// PublicBaseURL is advertised to the http dispatcher when no trigger URL is set.
	PublicBaseURL string `toml:"public_base_url"`
}

// Slack contains credentials for event verification, file lookup, and messaging.
type Slack struct {
	BotToken                  string `toml:"bot_token"`
	SigningSecret             string `toml:"signing_secret"`
	NotifyChannel             string `toml:"notify_channel"`
	APIBaseURL                string `toml:"api_base_url"`
	TimestampToleranceSeconds int    `toml:"timestamp_tolerance_seconds"`
	RequestTimeout            int    `toml:"request_timeout"`
}

// Storage selects and configures the durable object store for media and artifacts.
type Storage struct {
	Backend        string `toml:"backend"`
	Dir            string `toml:"dir"`
	BaseURL        string `toml:"base_url"`
	Bucket         string `toml:"bucket"`
	ServiceKey     string `toml:"service_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Transcription contains AssemblyAI settings.
type Transcription struct {
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	LanguageCode  string `toml:"language_code"`
	SpeakerLabels bool   `toml:"speaker_labels"`
}

// LLM contains the chat-completions gateway used for summarization.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// NotionDestination is one database that receives a page per summarized task.
type NotionDestination struct {
	Name              string `toml:"name"`
	DatabaseID        string `toml:"database_id"`
	IncludeConsultant bool   `toml:"include_consultant"`
	IncludeClient     bool   `toml:"include_client"`
}

// Notion contains page publishing settings.
type Notion struct {
	Enabled            bool                `toml:"enabled"`
	APIKey             string              `toml:"api_key"`
	BaseURL            string              `toml:"base_url"`
	Version            string              `toml:"version"`
	RequestTimeout     int                 `toml:"request_timeout"`
	TitleProperty      string              `toml:"title_property"`
	DateProperty       string              `toml:"date_property"`
	ConsultantProperty string              `toml:"consultant_property"`
	ClientProperty     string              `toml:"client_property"`
	Destinations       []NotionDestination `toml:"destinations"`
}

// Dispatch controls how stages trigger each other.
type Dispatch struct {
	Mode               string `toml:"mode"`
	RedisAddr          string `toml:"redis_addr"`
	RedisPassword      string `toml:"redis_password"`
	RedisDB            int    `toml:"redis_db"`
	Queue              string `toml:"queue"`
	Concurrency        int    `toml:"concurrency"`
	TaskTimeoutSeconds int    `toml:"task_timeout_seconds"`
	TriggerBaseURL     string `toml:"trigger_base_url"`
	TriggerToken       string `toml:"trigger_token"`
}

// Notifications contains operator channel delivery settings.
type Notifications struct {
	SlackEnabled   bool   `toml:"slack_enabled"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	PreviewLength  int    `toml:"preview_length"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for meetscribe.
//
// Configuration sections by subsystem:
//   - Paths: task database, lock file, and log directory
//   - Server: HTTP bind address and operator API token
//   - Slack: event signing secret, bot token, default channel
//   - Storage: object store backend (fs or supabase)
//   - Transcription: AssemblyAI speech-to-text
//   - LLM: summarization gateway
//   - Notion: destination databases for published summaries
//   - Dispatch: trigger chain between stages (asynq, http, none)
//   - Notifications: Slack and ntfy delivery
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Slack         Slack         `toml:"slack"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Notion        Notion        `toml:"notion"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("meetscribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageBackendFS {
		dirs = append(dirs, c.Storage.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite task database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "meetscribe.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "meetscribed.lock")
}

// TriggerBaseURL returns the URL the http dispatcher posts stage triggers to.
func (c *Config) TriggerBaseURL() string {
	if base := strings.TrimSpace(c.Dispatch.TriggerBaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	if base := strings.TrimSpace(c.Server.PublicBaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	return "http://" + c.Server.Bind
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

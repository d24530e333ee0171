package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Credentials that are only needed by
// the daemon are checked by ValidateDaemon so the CLI can run without them.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNotion(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	return nil
}

// ValidateDaemon extends Validate with the credentials every pipeline stage relies on.
func (c *Config) ValidateDaemon() error {
	if err := c.Validate(); err != nil {
		return err
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	required := []struct {
		key, env, value string
	}{
		{"slack.signing_secret", "SLACK_SIGNING_SECRET", c.Slack.SigningSecret},
		{"slack.bot_token", "SLACK_BOT_TOKEN", c.Slack.BotToken},
		{"transcription.api_key", "ASSEMBLYAI_API_KEY", c.Transcription.APIKey},
		{"llm.api_key", "OPENROUTER_API_KEY", c.LLM.APIKey},
	}
	for _, item := range required {
		if item.value == "" {
			return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'meetscribe config init')", item.key, item.env, defaultPath)
		}
	}
	if strings.TrimSpace(c.Server.APIToken) == "" && c.Dispatch.Mode == DispatchModeHTTP {
		return errors.New("server.api_token must be set when dispatch.mode is http")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"slack.timestamp_tolerance_seconds": c.Slack.TimestampToleranceSeconds,
		"slack.request_timeout":             c.Slack.RequestTimeout,
		"storage.request_timeout":           c.Storage.RequestTimeout,
		"llm.timeout_seconds":               c.LLM.TimeoutSeconds,
		"notion.request_timeout":            c.Notion.RequestTimeout,
		"notifications.request_timeout":     c.Notifications.RequestTimeout,
		"notifications.preview_length":      c.Notifications.PreviewLength,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendFS:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir must be set when storage.backend is fs")
		}
	case StorageBackendSupabase:
		if err := validateURL("storage.base_url", c.Storage.BaseURL); err != nil {
			return err
		}
		if c.Storage.ServiceKey == "" {
			return errors.New("storage.service_key must be set when storage.backend is supabase")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is supabase")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want fs or supabase)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateNotion() error {
	if !c.Notion.Enabled {
		return nil
	}
	if c.Notion.APIKey == "" {
		return errors.New("notion.api_key must be set when notion.enabled is true")
	}
	if len(c.Notion.Destinations) == 0 {
		return errors.New("notion.destinations must list at least one database when notion.enabled is true")
	}
	if len(c.Notion.Destinations) > MaxNotionDestinations {
		return fmt.Errorf("notion.destinations supports at most %d databases, got %d", MaxNotionDestinations, len(c.Notion.Destinations))
	}
	seen := make(map[string]struct{}, len(c.Notion.Destinations))
	for _, dest := range c.Notion.Destinations {
		if dest.DatabaseID == "" {
			return fmt.Errorf("notion.destinations[%s].database_id must be set", dest.Name)
		}
		if _, ok := seen[dest.Name]; ok {
			return fmt.Errorf("notion.destinations name %q is duplicated", dest.Name)
		}
		seen[dest.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateDispatch() error {
	switch c.Dispatch.Mode {
	case DispatchModeAsynq:
		if c.Dispatch.RedisAddr == "" {
			return errors.New("dispatch.redis_addr must be set when dispatch.mode is asynq")
		}
		if c.Dispatch.Concurrency <= 0 {
			return errors.New("dispatch.concurrency must be positive")
		}
		if c.Dispatch.TaskTimeoutSeconds <= 0 {
			return errors.New("dispatch.task_timeout_seconds must be positive")
		}
	case DispatchModeHTTP:
		if base := strings.TrimSpace(c.Dispatch.TriggerBaseURL); base != "" {
			if err := validateURL("dispatch.trigger_base_url", base); err != nil {
				return err
			}
		}
	case DispatchModeNone:
	default:
		return fmt.Errorf("dispatch.mode: unsupported value %q (want asynq, http, or none)", c.Dispatch.Mode)
	}
	return nil
}

func validateURL(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", key)
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

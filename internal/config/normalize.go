package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeSlack()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeNotion()
	c.normalizeDispatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		c.Server.APIToken = lookupEnv("MEETSCRIBE_API_TOKEN")
	}
	c.Server.PublicBaseURL = strings.TrimSpace(c.Server.PublicBaseURL)
}

func (c *Config) normalizeSlack() {
	c.Slack.BotToken = strings.TrimSpace(c.Slack.BotToken)
	if c.Slack.BotToken == "" {
		c.Slack.BotToken = lookupEnv("SLACK_BOT_TOKEN")
	}
	c.Slack.SigningSecret = strings.TrimSpace(c.Slack.SigningSecret)
	if c.Slack.SigningSecret == "" {
		c.Slack.SigningSecret = lookupEnv("SLACK_SIGNING_SECRET")
	}
	c.Slack.NotifyChannel = strings.TrimSpace(c.Slack.NotifyChannel)
	if c.Slack.NotifyChannel == "" {
		c.Slack.NotifyChannel = lookupEnv("SLACK_NOTIFY_CHANNEL")
	}
	c.Slack.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Slack.APIBaseURL), "/")
	if c.Slack.APIBaseURL == "" {
		c.Slack.APIBaseURL = defaultSlackAPIBaseURL
	}
	if c.Slack.TimestampToleranceSeconds == 0 {
		c.Slack.TimestampToleranceSeconds = defaultSlackTimestampTolerance
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendFS
	}
	if c.Storage.Backend == StorageBackendFS {
		if strings.TrimSpace(c.Storage.Dir) == "" {
			c.Storage.Dir = defaultStorageDir
		}
		var err error
		if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
			return fmt.Errorf("storage.dir: %w", err)
		}
	}
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = strings.TrimRight(lookupEnv("SUPABASE_URL"), "/")
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultStorageBucket
	}
	c.Storage.ServiceKey = strings.TrimSpace(c.Storage.ServiceKey)
	if c.Storage.ServiceKey == "" {
		c.Storage.ServiceKey = lookupEnv("SUPABASE_SERVICE_KEY")
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = lookupEnv("ASSEMBLYAI_API_KEY")
	}
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	c.Transcription.LanguageCode = strings.ToLower(strings.TrimSpace(c.Transcription.LanguageCode))
	if c.Transcription.LanguageCode == "" {
		c.Transcription.LanguageCode = defaultTranscriptionLanguageCode
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("OPENROUTER_API_KEY")
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
}

func (c *Config) normalizeNotion() {
	c.Notion.APIKey = strings.TrimSpace(c.Notion.APIKey)
	if c.Notion.APIKey == "" {
		c.Notion.APIKey = lookupEnv("NOTION_API_KEY")
	}
	c.Notion.BaseURL = strings.TrimRight(strings.TrimSpace(c.Notion.BaseURL), "/")
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = defaultNotionBaseURL
	}
	if strings.TrimSpace(c.Notion.Version) == "" {
		c.Notion.Version = defaultNotionVersion
	}
	if strings.TrimSpace(c.Notion.TitleProperty) == "" {
		c.Notion.TitleProperty = defaultNotionTitleProperty
	}
	if strings.TrimSpace(c.Notion.DateProperty) == "" {
		c.Notion.DateProperty = defaultNotionDateProperty
	}
	if strings.TrimSpace(c.Notion.ConsultantProperty) == "" {
		c.Notion.ConsultantProperty = defaultNotionConsultantProperty
	}
	if strings.TrimSpace(c.Notion.ClientProperty) == "" {
		c.Notion.ClientProperty = defaultNotionClientProperty
	}
	for i := range c.Notion.Destinations {
		dest := &c.Notion.Destinations[i]
		dest.Name = strings.TrimSpace(dest.Name)
		dest.DatabaseID = strings.TrimSpace(dest.DatabaseID)
		if dest.Name == "" {
			dest.Name = fmt.Sprintf("destination-%d", i+1)
		}
	}
}

func (c *Config) normalizeDispatch() {
	c.Dispatch.Mode = strings.ToLower(strings.TrimSpace(c.Dispatch.Mode))
	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = DispatchModeAsynq
	}
	c.Dispatch.RedisAddr = strings.TrimSpace(c.Dispatch.RedisAddr)
	// The address always has a default, so the environment overrides it.
	if value := lookupEnv("MEETSCRIBE_REDIS_ADDR"); value != "" {
		c.Dispatch.RedisAddr = value
	}
	if c.Dispatch.RedisAddr == "" {
		c.Dispatch.RedisAddr = defaultDispatchRedisAddr
	}
	if c.Dispatch.RedisPassword == "" {
		c.Dispatch.RedisPassword = lookupEnv("MEETSCRIBE_REDIS_PASSWORD")
	}
	c.Dispatch.Queue = strings.TrimSpace(c.Dispatch.Queue)
	if c.Dispatch.Queue == "" {
		c.Dispatch.Queue = defaultDispatchQueue
	}
	c.Dispatch.TriggerToken = strings.TrimSpace(c.Dispatch.TriggerToken)
	if c.Dispatch.TriggerToken == "" {
		c.Dispatch.TriggerToken = c.Server.APIToken
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

package config

const (
	defaultConfigPath                = "~/.config/meetscribe/config.toml"
	defaultDataDir                   = "~/.local/share/meetscribe"
	defaultLogDir                    = "~/.local/share/meetscribe/logs"
	defaultStorageDir                = "~/.local/share/meetscribe/objects"
	defaultServerBind                = "127.0.0.1:8080"
	defaultSlackAPIBaseURL           = "https://slack.com/api"
	defaultSlackTimestampTolerance   = 300
	defaultSlackRequestTimeout       = 30
	defaultStorageBucket             = "meeting-videos"
	defaultStorageRequestTimeout     = 1800
	defaultTranscriptionLanguageCode = "ja"
	defaultLLMBaseURL                = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                  = "google/gemini-2.5-flash"
	defaultLLMReferer                = "https://github.com/meetscribe/meetscribe"
	defaultLLMTitle                  = "meetscribe summarizer"
	defaultLLMTimeoutSeconds         = 180
	defaultNotionBaseURL             = "https://api.notion.com/v1"
	defaultNotionVersion             = "2022-06-28"
	defaultNotionRequestTimeout      = 30
	defaultNotionTitleProperty       = "Name"
	defaultNotionDateProperty        = "Date"
	defaultNotionConsultantProperty  = "Consultant"
	defaultNotionClientProperty      = "Client"
	defaultDispatchRedisAddr         = "127.0.0.1:6379"
	defaultDispatchQueue             = "meetscribe"
	defaultDispatchConcurrency       = 4
	defaultDispatchTaskTimeout       = 3600
	defaultNotifyRequestTimeout      = 10
	defaultNotifyPreviewLength       = 300
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"

	// MaxNotionDestinations caps the number of databases a summary fans out to.
	MaxNotionDestinations = 3
)

// Storage backends.
const (
	StorageBackendFS       = "fs"
	StorageBackendSupabase = "supabase"
)

// Dispatch modes.
const (
	DispatchModeAsynq = "asynq"
	DispatchModeHTTP  = "http"
	DispatchModeNone  = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Slack: Slack{
			APIBaseURL:                defaultSlackAPIBaseURL,
			TimestampToleranceSeconds: defaultSlackTimestampTolerance,
			RequestTimeout:            defaultSlackRequestTimeout,
		},
		Storage: Storage{
			Backend:        StorageBackendFS,
			Dir:            defaultStorageDir,
			Bucket:         defaultStorageBucket,
			RequestTimeout: defaultStorageRequestTimeout,
		},
		Transcription: Transcription{
			LanguageCode:  defaultTranscriptionLanguageCode,
			SpeakerLabels: true,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Notion: Notion{
			BaseURL:            defaultNotionBaseURL,
			Version:            defaultNotionVersion,
			RequestTimeout:     defaultNotionRequestTimeout,
			TitleProperty:      defaultNotionTitleProperty,
			DateProperty:       defaultNotionDateProperty,
			ConsultantProperty: defaultNotionConsultantProperty,
			ClientProperty:     defaultNotionClientProperty,
		},
		Dispatch: Dispatch{
			Mode:               DispatchModeAsynq,
			RedisAddr:          defaultDispatchRedisAddr,
			Queue:              defaultDispatchQueue,
			Concurrency:        defaultDispatchConcurrency,
			TaskTimeoutSeconds: defaultDispatchTaskTimeout,
		},
		Notifications: Notifications{
			SlackEnabled:   true,
			RequestTimeout: defaultNotifyRequestTimeout,
			PreviewLength:  defaultNotifyPreviewLength,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package assemblyai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"meetscribe/internal/config"
	"meetscribe/internal/services"
)

// Client transcribes media through AssemblyAI.
type Client struct {
	sdk    *aai.Client
	params aai.TranscriptOptionalParams
}

// Option customizes the client.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// New constructs a client from the [transcription] config section.
func New(cfg config.Transcription, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	sdkOpts := []aai.ClientOption{aai.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		sdkOpts = append(sdkOpts, aai.WithBaseURL(base))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, aai.WithHTTPClient(o.httpClient))
	}

	params := aai.TranscriptOptionalParams{}
	if code := strings.TrimSpace(cfg.LanguageCode); code != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(code)
	}
	if cfg.SpeakerLabels {
		params.SpeakerLabels = aai.Bool(true)
	}
	return &Client{sdk: aai.NewClientWithOptions(sdkOpts...), params: params}
}

// Transcribe uploads media and blocks until the transcript is ready.
func (c *Client) Transcribe(ctx context.Context, media io.Reader) (string, error) {
	if media == nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "assemblyai", "media stream is required", nil)
	}
	params := c.params
	transcript, err := c.sdk.Transcripts.TranscribeFromReader(ctx, media, &params)
	if err != nil {
		return "", classify(ctx, err)
	}
	return transcriptText(transcript)
}

func transcriptText(transcript aai.Transcript) (string, error) {
	if transcript.Status == aai.TranscriptStatusError {
		detail := strings.TrimSpace(aai.ToString(transcript.Error))
		if detail == "" {
			detail = "transcription failed"
		}
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "assemblyai", detail, nil)
	}
	text := strings.TrimSpace(aai.ToString(transcript.Text))
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "assemblyai", "empty transcript", nil)
	}
	return text, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transcribe", "assemblyai", "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrTransient, "transcribe", "assemblyai", "request cancelled", err)
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "authentication") || strings.Contains(lower, "api key") || strings.Contains(lower, "unauthorized") {
		return services.Wrap(services.ErrUnauthorized, "transcribe", "assemblyai", "credentials rejected", err)
	}
	return services.Wrap(services.ErrExternalTool, "transcribe", "assemblyai", "request failed", err)
}

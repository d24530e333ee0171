package summary

import (
	"context"
	"strings"

	"meetscribe/internal/services"
)

// Completer issues a JSON-mode completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Summarizer produces structured summaries from transcripts.
type Summarizer struct {
	completer Completer
}

// NewSummarizer wraps a completion client.
func NewSummarizer(completer Completer) *Summarizer {
	return &Summarizer{completer: completer}
}

// Summarize sends transcript with the fixed prompt and strictly decodes the reply.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (Summary, error) {
	if strings.TrimSpace(transcript) == "" {
		return Summary{}, services.Wrap(services.ErrValidation, "summarize", "prompt", "transcript is empty", nil)
	}
	if s == nil || s.completer == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "summarize", "prompt", "no completion client configured", nil)
	}
	content, err := s.completer.CompleteJSON(ctx, SystemPrompt, UserPrompt(transcript))
	if err != nil {
		return Summary{}, err
	}
	return Decode(content)
}

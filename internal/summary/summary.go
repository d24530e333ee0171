package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"meetscribe/internal/services"
	"meetscribe/internal/services/llm"
)

// Summary is the structured result persisted in summary_result.
type Summary struct {
	Title               string `json:"title"`
	BasicInfo           string `json:"basic_info"`
	ObjectiveAgenda     string `json:"objective_agenda"`
	DiscussionDecisions string `json:"discussion_decisions"`
	NextSteps           string `json:"next_steps"`
	OtherNotes          string `json:"other_notes"`
}

// Field is one labelled section of a summary.
type Field struct {
	Key     string
	Heading string
	Value   string
}

// Fields returns the sections in display order.
func (s Summary) Fields() []Field {
	return []Field{
		{Key: "title", Heading: "タイトル", Value: s.Title},
		{Key: "basic_info", Heading: "基本情報", Value: s.BasicInfo},
		{Key: "objective_agenda", Heading: "目的・アジェンダ", Value: s.ObjectiveAgenda},
		{Key: "discussion_decisions", Heading: "議論内容・決定事項", Value: s.DiscussionDecisions},
		{Key: "next_steps", Heading: "ネクストステップ", Value: s.NextSteps},
		{Key: "other_notes", Heading: "その他", Value: s.OtherNotes},
	}
}

var requiredKeys = []string{
	"title",
	"basic_info",
	"objective_agenda",
	"discussion_decisions",
	"next_steps",
	"other_notes",
}

// Decode parses a model response into a Summary. Code fences are stripped; any
// other deviation from a single JSON object with six string fields is an error.
func Decode(content string) (Summary, error) {
	body := llm.StripCodeFence(content)
	if body == "" {
		return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", "empty response", nil)
	}
	var raw map[string]json.RawMessage
	decoder := json.NewDecoder(strings.NewReader(body))
	if err := decoder.Decode(&raw); err != nil {
		return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", "response is not a JSON object", err)
	}
	if decoder.More() {
		return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", "trailing content after JSON object", nil)
	}
	if raw == nil {
		return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", "response is not a JSON object", nil)
	}
	for _, key := range requiredKeys {
		value, ok := raw[key]
		if !ok {
			return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", fmt.Sprintf("missing field %q", key), nil)
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || trimmed[0] != '"' {
			return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", fmt.Sprintf("field %q is not a string", key), nil)
		}
	}
	var summary Summary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		return Summary{}, services.Wrap(services.ErrExternalTool, "summarize", "decode", "decode fields", err)
	}
	return summary, nil
}

// Parse decodes a persisted summary_result.
func Parse(stored string) (Summary, error) {
	var summary Summary
	if err := json.Unmarshal([]byte(stored), &summary); err != nil {
		return Summary{}, fmt.Errorf("parse stored summary: %w", err)
	}
	return summary, nil
}

// JSON serializes the summary for persistence and artifact storage.
func (s Summary) JSON() string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// Text renders every field in full with headings.
func (s Summary) Text() string {
	var b strings.Builder
	for i, field := range s.Fields() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("■ ")
		b.WriteString(field.Heading)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(field.Value))
	}
	return b.String()
}

// Preview renders the summary truncated to limit runes for notifications.
func (s Summary) Preview(limit int) string {
	return Truncate(s.Text(), limit)
}

// Truncate shortens text to limit runes, appending an ellipsis when it cut anything.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}

package llm

import (
	"strings"
	"unicode"
)

const fence = "```"

// StripCodeFence returns the body of the first ``` block, dropping a json info
// string and any preamble before the fence. Content that already starts as a
// JSON object is returned trimmed, even if a string value contains backticks.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	start := strings.Index(trimmed, fence)
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+len(fence):]
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimLeftFunc(body, func(r rune) bool { return r == ' ' || r == '\t' })
	if tag := leadingWord(body); strings.EqualFold(tag, "json") {
		body = body[len(tag):]
	}
	return strings.TrimSpace(body)
}

func leadingWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

// summarizeSnippet collapses whitespace in a response body for error messages.
func summarizeSnippet(content string) string {
	const limit = 160
	clean := strings.Join(strings.Fields(content), " ")
	switch runes := []rune(clean); {
	case len(runes) == 0:
		return "<empty>"
	case len(runes) > limit:
		return string(runes[:limit]) + "..."
	default:
		return clean
	}
}

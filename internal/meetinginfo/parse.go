package meetinginfo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// Info holds the optional fields recognized in a share comment.
type Info struct {
	MeetingDate    string
	ConsultantName string
	ClientName     string
}

var (
	labelPrefix = `(?:(?:日付|日時|実施日|開催日|(?i:date))\s*:?\s*)?`

	slashOrDash = regexp.MustCompile(labelPrefix + `(\d{4})\s*[/\-.]\s*(\d{1,2})\s*[/\-.]\s*(\d{1,2})`)
	kanjiDate   = regexp.MustCompile(labelPrefix + `(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)

	consultantLabel = regexp.MustCompile(`(?:担当者|担当|コンサルタント|(?i:consultant))\s*(?:名)?\s*:?\s*`)
	clientLabel     = regexp.MustCompile(`(?:クライアント|顧客|企業|(?i:client))\s*(?:名)?\s*:?\s*`)

	valueTerminators = "\n\r,、，;；|｜/"
	honorifics       = []string{"さん", "様", "さま", "氏"}
)

// Parse extracts the meeting date, consultant name and client name from text.
func Parse(text string) Info {
	folded := width.Fold.String(text)
	return Info{
		MeetingDate:    parseDate(folded),
		ConsultantName: labelledValue(folded, consultantLabel, clientLabel),
		ClientName:     labelledValue(folded, clientLabel, consultantLabel),
	}
}

// NormalizeDate returns value as YYYY-MM-DD, or "" when it is not a real calendar date
// in one of the accepted formats.
func NormalizeDate(value string) string {
	return parseDate(width.Fold.String(strings.TrimSpace(value)))
}

func parseDate(text string) string {
	type hit struct {
		index int
		date  string
	}
	var best *hit
	for _, pattern := range []*regexp.Regexp{slashOrDash, kanjiDate} {
		for _, match := range pattern.FindAllStringSubmatchIndex(text, -1) {
			date, ok := buildDate(text[match[2]:match[3]], text[match[4]:match[5]], text[match[6]:match[7]])
			if !ok {
				continue
			}
			if best == nil || match[0] < best.index {
				best = &hit{index: match[0], date: date}
			}
			break
		}
	}
	if best == nil {
		return ""
	}
	return best.date
}

func buildDate(yearText, monthText, dayText string) (string, bool) {
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(monthText)
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if candidate.Year() != year || int(candidate.Month()) != month || candidate.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// labelledValue returns the text following the first occurrence of label, cut at a
// separator or at the start of the other label.
func labelledValue(text string, label, other *regexp.Regexp) string {
	loc := label.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if idx := strings.IndexAny(rest, valueTerminators); idx >= 0 {
		rest = rest[:idx]
	}
	if next := other.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	if next := slashOrDash.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	if next := kanjiDate.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	value := strings.TrimSpace(rest)
	for _, suffix := range honorifics {
		value = strings.TrimSpace(strings.TrimSuffix(value, suffix))
	}
	return value
}

// Package meetinginfo extracts meeting metadata from the free text that
// accompanies a shared recording.
//
// Parsing is best effort. Text is width-folded first so full-width digits and
// colons typed on Japanese keyboards match the same patterns as ASCII input.
// Every field that cannot be recognized is left empty; Parse never fails.
package meetinginfo

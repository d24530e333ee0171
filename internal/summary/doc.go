// Package summary turns a meeting transcript into the fixed six-field structured
// summary and renders it for humans.
//
// The model is instructed to return exactly one JSON object. Responses are
// unwrapped from code fences and then decoded strictly: every field must be
// present and be a string, otherwise the step fails instead of producing a
// partial summary.
package summary

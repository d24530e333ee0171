package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the log/persistence friendly view of a wrapped error.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details classifies err by marker and returns its message without the marker prefix.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind, marker := classify(err)
	msg := err.Error()
	if marker != nil {
		msg = strings.TrimPrefix(msg, marker.Error()+": ")
	}
	return ErrorDetails{Kind: kind, Message: msg}
}

// IsTransient reports whether err is worth retrying by an operator.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

func classify(err error) (string, error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized", ErrUnauthorized
	case errors.Is(err, ErrValidation):
		return "validation", ErrValidation
	case errors.Is(err, ErrConfiguration):
		return "configuration", ErrConfiguration
	case errors.Is(err, ErrNotFound):
		return "not_found", ErrNotFound
	case errors.Is(err, ErrTimeout):
		return "timeout", ErrTimeout
	case errors.Is(err, ErrExternalTool):
		return "external", ErrExternalTool
	case errors.Is(err, ErrTransient):
		return "transient", ErrTransient
	default:
		return "unknown", nil
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

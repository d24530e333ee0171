package ingress

import (
	"encoding/json"
	"strings"

	"meetscribe/internal/services"
)

// Envelope types.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// EventFileShared is the only inner event type that starts ingestion.
const EventFileShared = "file_shared"

// Envelope is the outer Events API payload.
type Envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

// Event is the inner event of an event_callback.
type Event struct {
	Type      string `json:"type"`
	FileID    string `json:"file_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	EventTS   string `json:"event_ts,omitempty"`
	File      *struct {
		ID string `json:"id"`
	} `json:"file,omitempty"`
}

// SharedFileID returns the file id of a file_shared event.
func (e *Event) SharedFileID() string {
	if e == nil {
		return ""
	}
	if id := strings.TrimSpace(e.FileID); id != "" {
		return id
	}
	if e.File != nil {
		return strings.TrimSpace(e.File.ID)
	}
	return ""
}

// DecodeEnvelope parses and validates a request body.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, services.Wrap(services.ErrValidation, "ingress", "decode", "body is not a JSON object", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate rejects envelopes that are missing the fields their type requires.
// Unknown envelope types are valid; the handler acknowledges them.
func (e Envelope) Validate() error {
	switch strings.TrimSpace(e.Type) {
	case "":
		return services.Wrap(services.ErrValidation, "ingress", "envelope", "type is required", nil)
	case TypeURLVerification:
		if strings.TrimSpace(e.Challenge) == "" {
			return services.Wrap(services.ErrValidation, "ingress", "envelope", "challenge is required", nil)
		}
	case TypeEventCallback:
		if e.Event == nil || strings.TrimSpace(e.Event.Type) == "" {
			return services.Wrap(services.ErrValidation, "ingress", "envelope", "event.type is required", nil)
		}
		if e.Event.Type == EventFileShared && e.Event.SharedFileID() == "" {
			return services.Wrap(services.ErrValidation, "ingress", "envelope", "file_shared event has no file id", nil)
		}
	}
	return nil
}

// IsFileShared reports whether the envelope starts ingestion.
func (e Envelope) IsFileShared() bool {
	return e.Type == TypeEventCallback && e.Event != nil && e.Event.Type == EventFileShared
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"meetscribe/internal/logging"
)

// WriteJSON encodes payload with the given status code.
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

// WriteError writes an ErrorResponse.
func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, ErrorResponse{Error: message})
}

package daemon

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"meetscribe/internal/api"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
func authMiddleware(token string, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	token = strings.TrimSpace(token)
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			api.WriteError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		presented := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			api.WriteError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

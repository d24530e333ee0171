package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"meetscribe/internal/services"
)

const signatureVersion = "v0"

// Sign computes the Events API signature for a request body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signed request. Requests whose timestamp differs
// from now by more than tolerance are rejected before the signature is compared.
func VerifySignature(secret, timestamp string, body []byte, signature string, now time.Time, tolerance time.Duration) error {
	if strings.TrimSpace(secret) == "" {
		return services.Wrap(services.ErrConfiguration, "slack", "verify signature", "signing secret not configured", nil)
	}
	if timestamp == "" || signature == "" {
		return services.Wrap(services.ErrUnauthorized, "slack", "verify signature", "missing signature headers", nil)
	}
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return services.Wrap(services.ErrUnauthorized, "slack", "verify signature", "malformed timestamp", nil)
	}
	skew := now.Sub(time.Unix(seconds, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return services.Wrap(services.ErrUnauthorized, "slack", "verify signature", "stale timestamp", nil)
	}
	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return services.Wrap(services.ErrUnauthorized, "slack", "verify signature", "signature mismatch", nil)
	}
	return nil
}

// Package llm provides an OpenRouter-compatible chat completions client that
// requests JSON-only responses.
//
// # Entry Points
//
// NewClient: construct a client from Config (FromConfig maps the [llm] section).
// Client.CompleteJSON: send system/user prompts, receive the raw JSON content.
// Client.HealthCheck: verify the API key and model with a tiny prompt.
// StripCodeFence: remove a ``` fence that models sometimes emit despite JSON mode.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, network timeouts, and responses that
// carry no content, with exponential backoff (base 1s, max 10s, 5 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately.
//
// Errors carry services markers: rejected credentials are ErrUnauthorized,
// exhausted retries on throttling or server errors are ErrTransient, and
// malformed or empty responses are ErrExternalTool.
package llm

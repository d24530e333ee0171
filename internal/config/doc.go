// Package config loads, normalizes, and validates meetscribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SLACK_SIGNING_SECRET and ASSEMBLYAI_API_KEY. The Config value is built once at
// process start and handed to each component constructor; nothing downstream
// reads the environment directly.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

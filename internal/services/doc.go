// Package services defines shared utilities consumed by the pipeline stages and
// the vendor adapters under it.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers, which keep
//     persisted error messages and HTTP responses consistent across stages.
//
// Vendor integrations (Slack, Notion, AssemblyAI, the LLM gateway) live in
// subpackages and report failures through the same markers.
package services

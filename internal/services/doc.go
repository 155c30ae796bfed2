// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and video IDs for
//     logging.
//   - Structured error markers plus the Wrap helper that sort failures into
//     rate-limited, durable-negative, item-local, and stage-fatal outcomes.
//
// Use these helpers when wiring new stage logic so retries, skips, and
// aborts stay uniform across the pipeline.
package services

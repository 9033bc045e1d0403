// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and stage names for logging.
//   - Structured error markers plus the Wrap helper that keep failure classes
//     (resolution, decryption incomplete, merge failed, transport) distinguishable
//     with errors.Is.
//   - KindOf, which maps an error to a stable kind string for logs and
//     notifications.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services

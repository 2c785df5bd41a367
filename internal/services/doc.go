// Package services defines shared utilities consumed by the ingestion and
// publish workers and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp media paths, lane names and publish attempt
//     IDs for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification uniform (rejected vs failed).
//
// Use these helpers when wiring new worker logic so operational behaviour stays
// consistent across the pipeline.
package services

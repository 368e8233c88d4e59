// Package services defines shared utilities consumed by the decision engine,
// executor, ledger, and their adapters.
//
// Key responsibilities:
//   - Context helpers that stamp action IDs, file paths, run IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure (degraded scoring, failed execution, impossible rollback) with
//     errors.Is instead of string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform.
package services

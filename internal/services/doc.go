// Package services defines shared utilities consumed by the queue, the
// resolver, and the encoder loop.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, phases, and encoder session
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is and record a failure kind on the job.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform.
package services

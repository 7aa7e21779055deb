// Package logging assembles structured slog loggers and formatting helpers used
// across reencode.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so encoder code can tag log lines
// with job IDs, phases, and session IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail, plus a progress sampler
// that keeps long encodes from flooding the log file.
package logging

// Package ingest turns a source file into a queue job.
//
// Planning resolves the filename into an episode identity, applies the stored
// rewrite rules, probes the streams to record which ones the output keeps,
// renders the output path from the naming template, and hashes the source so
// admission can detect duplicate content. Nothing is persisted here; the
// caller hands the job to the workflow manager.
package ingest

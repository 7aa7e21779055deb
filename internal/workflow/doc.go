// Package workflow admits jobs into the queue and drains it.
//
// The Manager validates and upserts submissions, claims jobs one at a time,
// hands each to the configured transcode engine, and records the outcome. A
// cancelled run always leaves its job pending so the next encoder resumes it;
// a failed run is recorded with its failure kind and engine detail so the
// user can retry it. Terminal states are committed immediately so other
// processes watching the database never see a half-written job.
//
// Run drains the queue once or, in monitor mode, keeps waiting for new jobs
// using the watch notifier and a fallback recheck timer. The caller must hold
// the encoder run lock for the duration of Run.
package workflow

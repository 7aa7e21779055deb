// Package database owns the SQLite file shared by the job queue and the
// rewrite rules.
//
// Open applies connection pragmas through the DSN (WAL journal, busy timeout,
// immediate transactions), creates the embedded schema on first use, and
// refuses databases written by a different schema version. Session carries the
// lazily-begun write transaction that queue.Store and rewrite.Store share:
// writes open it, Checkpoint marks a savepoint inside it, and Commit or
// Rollback end it. Reads go through the open transaction when there is one so
// callers always observe their own uncommitted writes.
//
// The database holds the queue and the rules only. Schema changes bump
// schemaVersion; users delete the file to adopt the new layout.
package database

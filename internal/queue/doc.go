// Package queue persists transcoding jobs in the shared SQLite database and
// exposes the queries and status transitions the encoder loop relies on.
//
// Jobs move Pending → Active → Completed or Failed. Failed jobs return to
// Pending through ResetFailed or Reset, and an Active job returns to Pending
// when its run is cancelled or when RecoverActive sweeps jobs orphaned by a
// crash. Claim and ClaimNext are compare-and-set updates so two encoders
// racing on the same file never both win.
//
// Every mutation runs on a database.Session; callers decide when to Commit.
// The source path is the natural key for re-submission and is compared
// case-insensitively through a folded key column.
package queue

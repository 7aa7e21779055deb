// Package rewrite stores per-series corrections to resolved episode identities
// and applies them.
//
// Rules live in buckets keyed by the case-folded series name. Each bucket holds
// at most one open placeholder rule (no old season and no old episode) that
// AddOrUpdateRule keeps refining, plus any number of fully specified rules.
// Engine.Apply walks a series' rules from the highest old episode down and
// stops at the first rule that changes the identity.
package rewrite

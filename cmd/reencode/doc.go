// Package main hosts the reencode CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into planner,
// queue, and workflow calls against the shared SQLite state directory. It
// centralizes configuration resolution, database sessions, and logging setup
// so subcommands only describe their flags and output.
//
// Several CLI processes may run at once: any number of `add` or `queue`
// invocations alongside a single `encode` loop guarded by the encoder lock.
package main

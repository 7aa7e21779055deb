// Package textutil holds small string helpers shared by the ingest planner and
// the transcode request builder: filesystem-safe names and shell-style argument
// splitting.
package textutil

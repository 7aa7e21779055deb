// Package config loads, normalizes, and validates reencode configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REENCODE_STATE_DIR. The Config type centralizes every knob the encoder and
// CLI need: where the queue database lives, which codecs jobs default to, how
// output files are named, and how duplicates are handled.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

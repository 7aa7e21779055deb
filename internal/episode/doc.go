// Package episode infers series, season, and episode identity from video
// filenames.
//
// Resolve walks a fixed list of filename shapes from the strictest (fansub
// group, season, and special marker) to the loosest ("Series - 05"). The first
// shape that matches wins, so looser shapes never steal names meant for
// stricter ones. A shape whose extension is not a known container is skipped
// rather than failed, letting a later shape try.
package episode

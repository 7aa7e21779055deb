// Package tracks decides which streams of a source file survive transcoding.
//
// Video streams are always kept, cover art excepted. Audio and subtitle streams
// are filtered by the configured language lists; an empty list keeps every
// stream of that type. When no audio stream matches, the single best-ranked
// audio stream is kept so the output never ends up silent. Ranking favours
// channel count, then lossless codecs, then the default disposition.
package tracks

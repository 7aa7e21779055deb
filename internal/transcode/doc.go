// Package transcode runs the external encoders that turn a queued job into an
// output file.
//
// Engine is the contract the workflow manager depends on: Probe reports the
// streams of a source and Run encodes a Request, reporting progress through a
// callback. FFmpeg shells out to the ffmpeg CLI and reads its -progress
// stream; Drapto encodes in-process through the drapto library. Snapshotter
// writes still frames from finished outputs.
//
// Engine failures are returned as *EngineError carrying the tail of the tool's
// diagnostic output; errors.Is(err, services.ErrExternalTool) holds for them.
package transcode

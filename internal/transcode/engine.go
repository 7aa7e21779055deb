package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reencode/internal/config"
	"reencode/internal/media/ffprobe"
	"reencode/internal/services"
)

// Progress is one observation of a running encode. Percent is 0-100.
type Progress struct {
	Percent float64
	Elapsed time.Duration
	Speed   float64
	Stage   string
}

// ProbeResult lists a source's streams by type.
type ProbeResult struct {
	Video    []ffprobe.Stream
	Audio    []ffprobe.Stream
	Subtitle []ffprobe.Stream
	Duration time.Duration
	Size     int64
	Raw      ffprobe.Result
}

// Engine encodes requests.
type Engine interface {
	Name() string
	Probe(ctx context.Context, path string) (ProbeResult, error)
	Run(ctx context.Context, req Request, progress func(Progress)) error
}

// Snapshotter writes a still frame from a media file.
type Snapshotter interface {
	Snapshot(ctx context.Context, input, output string, offset time.Duration, width int) error
}

// EngineError describes a failed encoder invocation.
type EngineError struct {
	Engine string
	Detail string
	Err    error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Engine)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the external-tool marker and the underlying error.
func (e *EngineError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrExternalTool}
	}
	return []error{services.ErrExternalTool, e.Err}
}

// New returns the engine named by cfg.Encoding.Engine.
func New(cfg *config.Config, logger *slog.Logger) (Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "new engine", "config is nil", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Encoding.Engine)) {
	case "", config.EngineFFmpeg:
		return NewFFmpeg(cfg.Encoding.FFmpegBinary, cfg.Encoding.FFprobeBinary, logger), nil
	case config.EngineDrapto:
		return NewDrapto(cfg.Encoding.FFprobeBinary, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "new engine", fmt.Sprintf("unknown engine %q", cfg.Encoding.Engine), nil)
	}
}

func probeWith(ctx context.Context, binary, path string) (ProbeResult, error) {
	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		return ProbeResult{}, &EngineError{Engine: "ffprobe", Err: err}
	}
	out := ProbeResult{
		Video:    result.StreamsOfType(ffprobe.TypeVideo),
		Audio:    result.StreamsOfType(ffprobe.TypeAudio),
		Subtitle: result.StreamsOfType(ffprobe.TypeSubtitle),
		Size:     result.SizeBytes(),
		Raw:      result,
	}
	if seconds := result.DurationSeconds(); seconds > 0 {
		out.Duration = time.Duration(seconds * float64(time.Second))
	}
	return out, nil
}

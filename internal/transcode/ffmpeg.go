package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"reencode/internal/logging"
)

var commandContext = exec.CommandContext

const (
	stderrTailLines = 20
	waitDelay       = 5 * time.Second
)

var muxerByContainer = map[string]string{
	"mkv": "matroska",
	"mka": "matroska",
	"mp4": "mp4",
	"m4v": "mp4",
	"avi": "avi",
	"wmv": "asf",
	"asf": "asf",
}

// FFmpeg runs encodes and snapshots through the ffmpeg CLI.
type FFmpeg struct {
	binary      string
	probeBinary string
	logger      *slog.Logger
}

// NewFFmpeg returns an ffmpeg engine. Empty binaries fall back to PATH lookups.
func NewFFmpeg(binary, probeBinary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{binary: binary, probeBinary: probeBinary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

// Probe inspects path with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	return probeWith(ctx, f.probeBinary, path)
}

// Args returns the ffmpeg arguments for req.
func (f *FFmpeg) Args(req Request) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-v", "error", "-i", req.InputPath}
	if len(req.Streams) == 0 {
		args = append(args, "-map", "0")
	} else {
		for _, idx := range req.Streams {
			args = append(args, "-map", "0:"+strconv.Itoa(idx))
		}
	}
	if req.VideoCodec != "" {
		args = append(args, "-c:v", req.VideoCodec)
	}
	if req.AudioCodec != "" {
		args = append(args, "-c:a", req.AudioCodec)
	}
	if req.SubtitleCodec != "" {
		args = append(args, "-c:s", req.SubtitleCodec)
	}
	args = append(args, StereoArgs(req.StereoMode, req.VideoCodec)...)
	args = append(args, req.ExtraParameters...)
	args = append(args, "-progress", "pipe:1", "-nostats")
	if muxer, ok := muxerByContainer[strings.ToLower(req.Container)]; ok {
		args = append(args, "-f", muxer)
	}
	return append(args, req.OutputPath)
}

// Run encodes req. Cancelling ctx kills ffmpeg and returns the context error.
func (f *FFmpeg) Run(ctx context.Context, req Request, progress func(Progress)) error {
	if req.Duration <= 0 {
		if probe, err := f.Probe(ctx, req.InputPath); err == nil {
			req.Duration = probe.Duration
		}
	}
	args := f.Args(req)
	f.logger.DebugContext(ctx, "starting ffmpeg", logging.String("command", f.binary+" "+strings.Join(args, " ")))

	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &EngineError{Engine: f.Name(), Err: fmt.Errorf("start: %w", err)}
	}

	tail := newTailBuffer(stderrTailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tail.consume(stderr)
	}()
	scanProgress(stdout, req.Duration, progress)
	wg.Wait()

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return &EngineError{Engine: f.Name(), Detail: tail.String(), Err: err}
	}
	return nil
}

// Snapshot writes one frame at offset, scaled to width, to output.
func (f *FFmpeg) Snapshot(ctx context.Context, input, output string, offset time.Duration, width int) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y", "-v", "error",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
	}
	if width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", width))
	}
	args = append(args, output)
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &EngineError{Engine: "ffmpeg snapshot", Detail: strings.TrimSpace(string(out)), Err: err}
	}
	return nil
}

// scanProgress reads ffmpeg's key=value progress blocks and reports one
// Progress per block.
func scanProgress(r io.Reader, duration time.Duration, progress func(Progress)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	var current Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				current.Elapsed = time.Duration(us) * time.Microsecond
			}
		case "speed":
			if speed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "x"), 64); err == nil {
				current.Speed = speed
			}
		case "progress":
			current.Stage = "encoding"
			if duration > 0 {
				current.Percent = min(float64(current.Elapsed)/float64(duration)*100, 99)
			}
			if value == "end" {
				current.Percent = 100
				current.Stage = "complete"
			}
			if progress != nil {
				progress(current)
			}
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		t.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		t.add("read stderr: " + err.Error())
	}
	_, _ = io.Copy(io.Discard, r)
}

func (t *tailBuffer) add(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == t.n {
		t.lines = t.lines[1:]
	}
	t.lines = append(t.lines, line)
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

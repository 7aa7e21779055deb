package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	draptolib "github.com/five82/drapto"

	"reencode/internal/fileutil"
	"reencode/internal/logging"
)

// Drapto encodes in-process with the drapto AV1 library. Drapto picks its own
// codecs and keeps every stream, so a request's codec and stream selections
// are ignored; only the input and output paths apply.
type Drapto struct {
	probeBinary string
	logger      *slog.Logger
	encode      func(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error
}

// NewDrapto returns a drapto engine probing with probeBinary.
func NewDrapto(probeBinary string, logger *slog.Logger) *Drapto {
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drapto{
		probeBinary: probeBinary,
		logger:      logging.NewComponentLogger(logger, "drapto"),
		encode: func(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error {
			enc, err := draptolib.New(draptolib.WithResponsive())
			if err != nil {
				return err
			}
			_, err = enc.EncodeWithReporter(ctx, input, outputDir, rep)
			return err
		},
	}
}

func (d *Drapto) Name() string { return "drapto" }

// Probe inspects path with ffprobe.
func (d *Drapto) Probe(ctx context.Context, path string) (ProbeResult, error) {
	return probeWith(ctx, d.probeBinary, path)
}

// Run encodes into a scratch directory beside the requested output and moves
// the result onto req.OutputPath.
func (d *Drapto) Run(ctx context.Context, req Request, progress func(Progress)) error {
	if strings.TrimSpace(req.InputPath) == "" || strings.TrimSpace(req.OutputPath) == "" {
		return &EngineError{Engine: d.Name(), Err: errors.New("input and output paths are required")}
	}
	scratch, err := os.MkdirTemp(filepath.Dir(req.OutputPath), ".drapto-")
	if err != nil {
		return &EngineError{Engine: d.Name(), Err: err}
	}
	defer os.RemoveAll(scratch)

	rep := newProgressReporter(progress, d.logger)
	if err := d.encode(ctx, req.InputPath, scratch, rep); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &EngineError{Engine: d.Name(), Detail: rep.lastError(), Err: err}
	}

	base := filepath.Base(req.InputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	if err := fileutil.MoveFile(filepath.Join(scratch, stem+".mkv"), req.OutputPath); err != nil {
		return &EngineError{Engine: d.Name(), Err: err}
	}
	return nil
}

// progressReporter adapts drapto's Reporter callbacks to Progress updates.
type progressReporter struct {
	callback func(Progress)
	logger   *slog.Logger

	mu      sync.Mutex
	lastErr string
}

func newProgressReporter(callback func(Progress), logger *slog.Logger) *progressReporter {
	return &progressReporter{callback: callback, logger: logger}
}

func (r *progressReporter) emit(p Progress) {
	if r.callback != nil {
		r.callback(p)
	}
}

func (r *progressReporter) lastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *progressReporter) Hardware(draptolib.HardwareSummary) {}

func (r *progressReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Debug("drapto initialized",
		logging.Any("input", s.InputFile),
		logging.Any("resolution", s.Resolution),
		logging.Any("dynamic_range", s.DynamicRange),
	)
}

func (r *progressReporter) StageProgress(s draptolib.StageProgress) {
	r.emit(Progress{Percent: float64(s.Percent), Stage: s.Stage})
}

func (r *progressReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *progressReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("drapto encoding config", logging.Any("encoder", s.Encoder), logging.Any("preset", s.Preset))
}

func (r *progressReporter) EncodingStarted(uint64) {
	r.emit(Progress{Stage: "encoding"})
}

func (r *progressReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(Progress{Percent: float64(s.Percent), Speed: float64(s.Speed), Stage: "encoding"})
}

func (r *progressReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if !s.Passed {
		r.logger.Warn("drapto validation reported failures", logging.String(logging.FieldEventType, "drapto_validation"))
	}
}

func (r *progressReporter) EncodingComplete(draptolib.EncodingOutcome) {
	r.emit(Progress{Percent: 100, Stage: "complete"})
}

func (r *progressReporter) Warning(message string) {
	r.logger.Warn(message, logging.String(logging.FieldEventType, "drapto_warning"))
}

func (r *progressReporter) Error(e draptolib.ReporterError) {
	r.mu.Lock()
	r.lastErr = strings.TrimSpace(fmt.Sprintf("%v: %v", e.Title, e.Message))
	r.mu.Unlock()
}

func (r *progressReporter) OperationComplete(string) {}

func (r *progressReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *progressReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *progressReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*progressReporter)(nil)

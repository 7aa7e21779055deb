package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"reencode/internal/config"
	"reencode/internal/contenthash"
	"reencode/internal/fileutil"
	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/transcode"
)

type outcome int

const (
	outcomeCompleted outcome = iota + 1
	outcomeDuplicate
	outcomeFailed
	outcomeCancelled
	outcomeReleased
)

// DuplicateOutputMessage prefixes the status of jobs whose output matched
// earlier work.
const DuplicateOutputMessage = "Duplicate of existing output"

// execute runs one claimed job to a terminal or pending state. The returned
// error is non-nil only when the run should stop: storage failures, failed
// preflight checks, and cancellation.
func (m *Manager) execute(ctx context.Context, job *queue.Job) (outcome, error) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, m.logger).With(logging.String("job", job.Label()))
	started := time.Now()
	m.observer.JobStarted(job)

	if err := m.runPreflightChecks(logger); err != nil {
		if relErr := m.release(ctx, logger, job, err.Error()); relErr != nil {
			return outcomeReleased, relErr
		}
		m.observer.JobFinished(job, err)
		return outcomeReleased, err
	}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", job.SourcePath),
		logging.String("output", job.OutputPath),
		logging.String("engine", m.engine.Name()),
	)

	temp := m.tempOutputPath(job)
	req, err := transcode.NewRequest(job, m.cfg.Encoding, temp)
	if err != nil {
		return m.recordFailure(ctx, logger, job, temp, err)
	}

	encodeCtx := services.WithPhase(ctx, "encode")
	progressLogger := logging.WithContext(encodeCtx, m.logger)
	runErr := m.engine.Run(encodeCtx, req, func(p transcode.Progress) {
		m.observer.JobProgress(job, p)
		if m.sampler.ShouldLog(job.ID, p.Percent, p.Stage) {
			progressLogger.Info("encode progress",
				logging.Float64("percent", p.Percent),
				logging.String("stage", p.Stage),
				logging.Duration("elapsed", p.Elapsed),
				logging.Float64("speed", p.Speed),
			)
		}
	})
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		return m.recordFailure(ctx, logger, job, temp, runErr)
	}
	return m.finalize(ctx, logger, job, temp, started)
}

// finalize hashes the produced file, applies the duplicate-output policy,
// moves the output into place, and records completion.
func (m *Manager) finalize(ctx context.Context, logger *slog.Logger, job *queue.Job, temp string, started time.Time) (outcome, error) {
	hashCtx := services.WithPhase(ctx, "hash")
	outputHash, err := contenthash.File(hashCtx, m.hasher, temp)
	if err != nil {
		return m.recordFailure(ctx, logger, job, temp, err)
	}
	outputSize := fileutil.FileSize(temp)

	duplicate, err := m.store.ExistsByContent(context.WithoutCancel(ctx), job.SourcePath, outputHash)
	if err != nil {
		m.discard(logger, temp)
		return outcomeReleased, m.forcePending(ctx, logger, job, err)
	}

	discard := duplicate && m.cfg.Queue.DuplicatePolicy == config.DuplicateDiscard
	if discard {
		m.discard(logger, temp)
		logging.WarnWithContext(logger, "encoded output duplicates earlier work; discarded", "duplicate_output",
			logging.String("output_hash", outputHash),
			logging.String(logging.FieldImpact, "no new file was written to the library"),
			logging.String(logging.FieldErrorHint, "remove the job or the earlier output if this is unexpected"),
		)
	} else {
		if err := fileutil.MoveFile(temp, job.OutputPath); err != nil {
			return m.recordFailure(ctx, logger, job, temp,
				services.Wrap(services.ErrTransient, "workflow", "move output", job.OutputPath, err))
		}
		if duplicate {
			logging.WarnWithContext(logger, "encoded output duplicates earlier work; kept", "duplicate_output",
				logging.String("output_hash", outputHash),
				logging.String(logging.FieldImpact, "the library holds the same content twice"),
				logging.String(logging.FieldErrorHint, "set queue.duplicate_policy = \"discard\" to drop duplicates"),
			)
		}
		m.writeThumbnail(ctx, logger, job.OutputPath)
	}

	finished := m.now()
	job.Status = queue.StatusCompleted
	job.Failure = nil
	job.OutputHash = outputHash
	job.OutputSize = outputSize
	job.FinishedAt = &finished
	job.StatusMessage = completionMessage(job.SourceSize, outputSize, time.Since(started), duplicate, discard)

	if err := m.persist(ctx, job); err != nil {
		return outcomeReleased, m.forcePending(ctx, logger, job, err)
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", job.OutputPath),
		logging.String("summary", job.StatusMessage),
		logging.Bool("duplicate", duplicate),
	)
	m.observer.JobFinished(job, nil)
	if duplicate {
		return outcomeDuplicate, nil
	}
	return outcomeCompleted, nil
}

// writeThumbnail renders the side artifact for output. Failures are logged
// and never fail the job.
func (m *Manager) writeThumbnail(ctx context.Context, logger *slog.Logger, output string) {
	if !m.cfg.Thumbnails.Enabled || m.snapshotter == nil {
		return
	}
	thumb := ThumbnailPath(output)
	err := m.snapshotter.Snapshot(services.WithPhase(ctx, "thumbnail"), output, thumb, m.cfg.ThumbnailOffset(), m.cfg.Thumbnails.Width)
	if err != nil {
		_ = fileutil.RemoveIfExists(thumb)
		logging.WarnWithContext(logger, "thumbnail generation failed", "thumbnail_failed",
			logging.Error(err),
			logging.String("thumbnail", thumb),
			logging.String(logging.FieldImpact, "the episode has no thumbnail"),
		)
		return
	}
	logger.Debug("thumbnail written", logging.String("thumbnail", thumb))
}

// ThumbnailPath returns the still image written next to output.
func ThumbnailPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "-thumb.jpg"
}

func (m *Manager) tempOutputPath(job *queue.Job) string {
	ext := filepath.Ext(job.OutputPath)
	if ext == "" {
		ext = "." + strings.TrimPrefix(m.cfg.Encoding.Container, ".")
	}
	return filepath.Join(m.cfg.Paths.WorkDir, fmt.Sprintf("job-%d-%s%s", job.ID, uuid.NewString(), ext))
}

func (m *Manager) discard(logger *slog.Logger, path string) {
	if err := fileutil.RemoveIfExists(path); err != nil {
		logger.Warn("failed to remove partial output", logging.String("path", path), logging.Error(err))
	}
}

func (m *Manager) persist(ctx context.Context, job *queue.Job) error {
	return m.commitOrRollback(m.store.Update(context.WithoutCancel(ctx), job))
}

func completionMessage(sourceSize, outputSize int64, elapsed time.Duration, duplicate, discarded bool) string {
	if discarded {
		return DuplicateOutputMessage + "; new output discarded"
	}
	msg := fmt.Sprintf("Encoded %s to %s", humanize.Bytes(uint64(max(sourceSize, 0))), humanize.Bytes(uint64(max(outputSize, 0))))
	if sourceSize > 0 {
		delta := float64(outputSize-sourceSize) / float64(sourceSize) * 100
		msg += fmt.Sprintf(" (%+.1f%%)", delta)
	}
	msg += " in " + elapsed.Round(time.Second).String()
	if duplicate {
		msg = DuplicateOutputMessage + "; kept. " + msg
	}
	return msg
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, services.ErrCancelled)
}

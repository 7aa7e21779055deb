package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/services"
)

const defaultRecheckInterval = time.Minute

// Run recovers jobs orphaned by an interrupted encoder, then drains the
// queue. With Monitor set and no explicit ids it keeps waiting for new jobs
// until ctx is cancelled. Cancellation ends the loop without an error and
// leaves the interrupted job pending.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	var summary RunSummary
	if m.engine == nil {
		return summary, services.Wrap(services.ErrConfiguration, "workflow", "run", "no transcode engine configured", nil)
	}

	sessionID := uuid.NewString()
	ctx = services.WithSessionID(ctx, sessionID)
	logger := logging.WithContext(ctx, m.logger)

	recovered, err := m.store.RecoverActive(ctx)
	if err := m.commitOrRollback(err); err != nil {
		return summary, err
	}
	summary.Recovered = recovered
	if recovered > 0 {
		logging.WarnWithContext(logger, "recovered jobs left active by an interrupted run", "queue_recovered",
			logging.Int64("count", recovered),
			logging.String(logging.FieldImpact, "recovered jobs restart from the beginning"),
			logging.String(logging.FieldErrorHint, "none; the jobs are pending again"),
		)
	}

	remaining := opts.IDs
	explicit := len(remaining) > 0
	monitor := opts.Monitor && !explicit
	logger.Info("encoder started",
		logging.String("engine", m.engine.Name()),
		logging.Bool("monitor", monitor),
		logging.Int("explicit_jobs", len(remaining)),
	)

	for {
		if ctx.Err() != nil {
			return m.finishRun(logger, summary, nil)
		}
		if explicit && len(remaining) == 0 {
			return m.finishRun(logger, summary, nil)
		}

		job, consumed, err := m.claim(ctx, remaining)
		if explicit {
			remaining = remaining[consumed:]
		}
		if err != nil {
			if ctx.Err() != nil {
				return m.finishRun(logger, summary, nil)
			}
			return m.finishRun(logger, summary, err)
		}
		if job == nil {
			if !monitor {
				return m.finishRun(logger, summary, nil)
			}
			m.waitForJobs(ctx)
			continue
		}

		result, execErr := m.execute(ctx, job)
		summary.record(result)
		if execErr != nil {
			// A job whose final state could not be written is reported even
			// when the run was cancelled meanwhile.
			if errors.Is(execErr, services.ErrStorage) {
				return m.finishRun(logger, summary, execErr)
			}
			if errors.Is(execErr, context.Canceled) || ctx.Err() != nil {
				return m.finishRun(logger, summary, nil)
			}
			return m.finishRun(logger, summary, execErr)
		}
	}
}

func (m *Manager) finishRun(logger *slog.Logger, summary RunSummary, err error) (RunSummary, error) {
	logger.Info("encoder stopped",
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Int("duplicates", summary.Duplicates),
		logging.Bool("error", err != nil),
	)
	return summary, err
}

// waitForJobs blocks until ctx ends, the notifier reports a change, or the
// recheck interval elapses, then logs how much work is waiting.
func (m *Manager) waitForJobs(ctx context.Context) {
	if err := m.commit(); err != nil {
		m.logger.Warn("commit before idle wait failed", logging.Error(err))
		m.rollback()
	}
	interval := m.cfg.RecheckInterval()
	if interval <= 0 {
		interval = defaultRecheckInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var changes <-chan struct{}
	if m.notifier != nil {
		changes = m.notifier.Changes()
	}
	reason := "recheck"
	select {
	case <-ctx.Done():
		return
	case <-changes:
		reason = "change"
	case <-timer.C:
	}

	pending, err := m.store.Count(ctx, queue.StatusPending)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("pending count failed", logging.Error(err))
		}
		return
	}
	m.logger.Debug("queue rechecked", logging.String("reason", reason), logging.Int("pending", pending))
}

func (s *RunSummary) record(result outcome) {
	switch result {
	case outcomeCompleted:
		s.Completed++
	case outcomeDuplicate:
		s.Completed++
		s.Duplicates++
	case outcomeFailed:
		s.Failed++
	case outcomeCancelled:
		s.Cancelled++
	}
}

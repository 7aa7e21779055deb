package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/transcode"
)

// recordFailure discards partial output and persists the failed or cancelled
// state. Cancelled runs return to pending so the job resumes later.
func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, temp string, runErr error) (outcome, error) {
	m.discard(logger, temp)

	if isCancellation(ctx, runErr) {
		job.Status = queue.StatusPending
		job.StatusMessage = queue.CancelledMessage
		job.Failure = &queue.Failure{Kind: services.KindCancelled, Message: queue.CancelledMessage}
		job.StartedAt = nil
		job.FinishedAt = nil
		if err := m.persist(ctx, job); err != nil {
			return outcomeCancelled, m.forcePending(ctx, logger, job, err)
		}
		logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
		m.observer.JobFinished(job, context.Canceled)
		return outcomeCancelled, context.Canceled
	}

	finished := m.now()
	failure := &queue.Failure{
		Kind:    services.FailureKind(runErr),
		Message: strings.TrimSpace(runErr.Error()),
	}
	var engineErr *transcode.EngineError
	if errors.As(runErr, &engineErr) {
		failure.Detail = engineErr.Detail
	}
	job.Status = queue.StatusFailed
	job.StatusMessage = failureMessage(failure)
	job.Failure = failure
	job.OutputHash = ""
	job.FinishedAt = &finished

	if err := m.persist(ctx, job); err != nil {
		return outcomeFailed, m.forcePending(ctx, logger, job, err)
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(runErr),
		logging.String("failure_kind", failure.Kind),
		logging.String("detail", failure.Detail),
		logging.String(logging.FieldErrorHint, "inspect the detail, then run queue retry"),
	)
	m.observer.JobFinished(job, runErr)
	return outcomeFailed, nil
}

// release returns a claimed job to pending without running it.
func (m *Manager) release(ctx context.Context, logger *slog.Logger, job *queue.Job, message string) error {
	job.Status = queue.StatusPending
	job.StatusMessage = message
	job.StartedAt = nil
	if err := m.persist(ctx, job); err != nil {
		return m.forcePending(ctx, logger, job, err)
	}
	return nil
}

// forcePending rolls back the failed write and makes one attempt to move the
// job from active back to pending so a later run picks it up. The original
// storage error is always returned.
func (m *Manager) forcePending(ctx context.Context, logger *slog.Logger, job *queue.Job, cause error) error {
	m.rollback()
	persistCtx := context.WithoutCancel(ctx)
	_, err := m.store.Reset(persistCtx, []int64{job.ID}, []queue.Status{queue.StatusActive})
	if err == nil {
		err = m.commit()
	}
	if err != nil {
		m.rollback()
		logging.ErrorWithContext(logger, "could not return job to pending", "job_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next encode run recovers the job automatically"),
		)
	} else {
		job.Status = queue.StatusPending
		job.StatusMessage = ""
		job.Failure = nil
		logging.WarnWithContext(logger, "job returned to pending after storage error", "job_forced_pending",
			logging.Error(cause),
			logging.String(logging.FieldImpact, "the job runs again on the next encode"),
			logging.String(logging.FieldErrorHint, "check the state directory's disk and permissions"),
		)
	}
	if errors.Is(cause, services.ErrStorage) {
		return cause
	}
	return services.Wrap(services.ErrStorage, "workflow", "persist job", "", cause)
}

func failureMessage(f *queue.Failure) string {
	switch f.Kind {
	case services.KindEngine:
		return "Encode failed: " + f.Message
	case services.KindValidation:
		return "Invalid job: " + f.Message
	case services.KindNotFound:
		return "Source missing: " + f.Message
	default:
		return "Failed: " + f.Message
	}
}

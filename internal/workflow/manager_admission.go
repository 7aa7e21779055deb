package workflow

import (
	"context"
	"fmt"
	"os"

	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/services"
)

// Enqueue admits job as pending. A running job for the same source path is
// never replaced. When a completed job already consumed or produced the same
// bytes, action decides whether the job is still admitted.
func (m *Manager) Enqueue(ctx context.Context, job *queue.Job, action DuplicateAction) (Admission, error) {
	if err := queue.Validate(job); err != nil {
		return Admission{}, err
	}
	if job.SourceHash == "" {
		return Admission{}, services.Wrap(services.ErrValidation, "workflow", "enqueue", "source hash is required", nil)
	}

	// Hold the write lock across the active check and the upsert; every
	// return below either commits or leaves this rollback to release it.
	if err := m.store.Session().Begin(ctx); err != nil {
		return Admission{}, services.Wrap(services.ErrStorage, "workflow", "enqueue", "", err)
	}
	defer m.rollback()

	existing, err := m.store.GetByPath(ctx, job.SourcePath)
	if err != nil {
		return Admission{}, err
	}
	if existing != nil && existing.Status == queue.StatusActive {
		return Admission{}, services.Wrap(services.ErrAlreadyActive, "workflow", "enqueue",
			fmt.Sprintf("job %d for %s is running", existing.ID, job.SourcePath), nil)
	}

	duplicate, err := m.store.ExistsByContent(ctx, job.SourcePath, job.SourceHash)
	if err != nil {
		return Admission{}, err
	}
	admission := Admission{Duplicate: duplicate, Updated: existing != nil}
	logger := m.logger.With(logging.String("source", job.SourcePath))

	if duplicate {
		switch action {
		case DuplicateSkip:
			logger.Info("duplicate source skipped", logging.String(logging.FieldEventType, "duplicate_skipped"))
			admission.Skipped = true
			admission.Job = existing
			return admission, nil
		case DuplicateRemove:
			return m.abandonDuplicate(ctx, job, existing, admission)
		default:
			logging.WarnWithContext(logger, "source content already processed by another job", "duplicate_source",
				logging.String(logging.FieldImpact, "the queue may produce the same episode twice"),
				logging.String(logging.FieldErrorHint, "re-run add with --skip-duplicates or --remove-duplicates"),
			)
		}
	}

	job.Status = queue.StatusPending
	job.StatusMessage = ""
	job.Failure = nil
	job.OutputHash = ""
	job.OutputSize = 0
	job.StartedAt = nil
	job.FinishedAt = nil

	saved, err := m.store.Upsert(ctx, job)
	if err := m.commitOrRollback(err); err != nil {
		return Admission{}, err
	}
	admission.Job = saved
	logger.Info("job admitted",
		logging.Int64(logging.FieldJobID, saved.ID),
		logging.String("output", saved.OutputPath),
		logging.Bool("updated", admission.Updated),
		logging.Bool("duplicate", duplicate),
	)
	return admission, nil
}

// abandonDuplicate deletes the source file and any idle record for it so the
// content is never queued again.
func (m *Manager) abandonDuplicate(ctx context.Context, job, existing *queue.Job, admission Admission) (Admission, error) {
	if existing != nil {
		if err := m.commitOrRollback(m.store.DeleteByID(ctx, existing.ID)); err != nil {
			return Admission{}, err
		}
	}
	if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
		return Admission{}, fmt.Errorf("remove duplicate source: %w", err)
	}
	admission.Removed = true
	m.logger.Info("duplicate source removed",
		logging.String("source", job.SourcePath),
		logging.String(logging.FieldEventType, "duplicate_removed"),
	)
	return admission, nil
}

package workflow

import (
	"context"

	"reencode/internal/logging"
	"reencode/internal/queue"
)

// ResetFailedQueue moves every failed job back to pending.
func (m *Manager) ResetFailedQueue(ctx context.Context) (int64, error) {
	n, err := m.store.ResetFailed(ctx)
	if err := m.commitOrRollback(err); err != nil {
		return 0, err
	}
	m.logger.Info("failed jobs reset", logging.Int64("count", n))
	return n, nil
}

// ResetQueueItems moves the selected jobs back to pending. ids and statuses
// narrow the selection together; pending jobs are left alone.
func (m *Manager) ResetQueueItems(ctx context.Context, ids []int64, statuses []queue.Status) (int64, error) {
	n, err := m.store.Reset(ctx, ids, statuses)
	if err := m.commitOrRollback(err); err != nil {
		return 0, err
	}
	m.logger.Info("jobs reset",
		logging.Int64("count", n),
		logging.Any("ids", ids),
		logging.Any("statuses", statuses),
	)
	return n, nil
}

// RemoveJobs deletes the listed idle jobs. Every id is checked before any
// deletion is committed.
func (m *Manager) RemoveJobs(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := m.store.DeleteByID(ctx, id); err != nil {
			m.rollback()
			return err
		}
	}
	return m.commitOrRollback(nil)
}

// ClearQueue deletes jobs in the given statuses. No statuses clears every
// idle job.
func (m *Manager) ClearQueue(ctx context.Context, statuses ...queue.Status) (int64, error) {
	n, err := m.store.DeleteByStatus(ctx, statuses...)
	if err := m.commitOrRollback(err); err != nil {
		return 0, err
	}
	return n, nil
}

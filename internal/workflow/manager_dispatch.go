package workflow

import (
	"context"
	"errors"

	"reencode/internal/queue"
)

// ClaimNext claims the next job and commits the claim. With ids it claims the
// first of them that is claimable, skipping completed ones and resetting
// failed ones to pending in the same transaction; unknown ids return
// ErrNotFound and running ones ErrAlreadyActive. Without ids it claims the
// oldest pending job. It returns nil when nothing is claimable.
func (m *Manager) ClaimNext(ctx context.Context, ids ...int64) (*queue.Job, error) {
	job, _, err := m.claim(ctx, ids)
	return job, err
}

// claim also reports how many ids were consumed so explicit runs never revisit
// a job they already processed.
func (m *Manager) claim(ctx context.Context, ids []int64) (*queue.Job, int, error) {
	if len(ids) == 0 {
		job, err := m.store.ClaimNext(ctx)
		if err := m.commitOrRollback(err); err != nil {
			return nil, 0, err
		}
		return job, 0, nil
	}
	for i, id := range ids {
		if _, err := m.store.Reset(ctx, []int64{id}, []queue.Status{queue.StatusFailed}); err != nil {
			m.rollback()
			return nil, i + 1, err
		}
		job, err := m.store.Claim(ctx, id)
		if errors.Is(err, queue.ErrNotClaimable) {
			m.rollback()
			continue
		}
		if err := m.commitOrRollback(err); err != nil {
			return nil, i + 1, err
		}
		return job, i + 1, nil
	}
	return nil, len(ids), nil
}

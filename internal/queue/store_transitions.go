package queue

import (
	"context"
	"errors"
	"fmt"

	"reencode/internal/services"
)

// ErrNotClaimable marks jobs whose status does not allow a claim, such as
// completed jobs named explicitly on the command line.
var ErrNotClaimable = errors.New("job is not claimable")

// Claim moves a pending job to active. Unknown ids return ErrNotFound,
// running jobs ErrAlreadyActive, and completed or failed jobs ErrNotClaimable;
// a failed job must be reset to pending first.
func (s *Store) Claim(ctx context.Context, id int64) (*Job, error) {
	now := formatTime(s.now())
	res, err := s.session.ExecContext(ctx,
		`UPDATE jobs
         SET status = ?, status_message = NULL, failure_kind = NULL, failure_message = NULL,
             failure_detail = NULL, started_at = ?, finished_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusActive, now, now, id, StatusPending,
	)
	if err != nil {
		return nil, storageError("claim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storageError("claim", err)
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "claim", fmt.Sprintf("job %d", id), nil)
	}
	if n == 1 {
		return job, nil
	}
	switch job.Status {
	case StatusActive:
		return job, services.Wrap(services.ErrAlreadyActive, "queue", "claim", fmt.Sprintf("job %d", id), nil)
	default:
		return job, fmt.Errorf("%w: job %d is %s", ErrNotClaimable, id, job.Status)
	}
}

// ClaimNext claims the oldest pending job. It returns nil when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	for {
		var id int64
		rows, err := s.session.QueryContext(ctx,
			`SELECT id FROM jobs WHERE status = ? ORDER BY id LIMIT 1`, StatusPending)
		if err != nil {
			return nil, storageError("claim next", err)
		}
		found := rows.Next()
		if found {
			err = rows.Scan(&id)
		}
		if closeErr := rows.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			err = rows.Err()
		}
		if err != nil {
			return nil, storageError("claim next", err)
		}
		if !found {
			return nil, nil
		}

		job, err := s.Claim(ctx, id)
		if err == nil {
			return job, nil
		}
		// Another encoder claimed or removed the job first; look again.
		if errors.Is(err, services.ErrAlreadyActive) || errors.Is(err, services.ErrNotFound) || errors.Is(err, ErrNotClaimable) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		return nil, err
	}
}

// ResetFailed moves every failed job back to pending and clears its message.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	return s.Reset(ctx, nil, []Status{StatusFailed})
}

// Reset moves jobs back to pending. ids limits the reset to those jobs and
// statuses limits it to jobs currently in one of those statuses; at least one
// filter is required. Pending jobs are left as they are.
func (s *Store) Reset(ctx context.Context, ids []int64, statuses []Status) (int64, error) {
	if len(ids) == 0 && len(statuses) == 0 {
		return 0, services.Wrap(services.ErrValidation, "queue", "reset", "ids or statuses required", nil)
	}
	query := `UPDATE jobs
        SET status = ?, status_message = NULL, failure_kind = NULL, failure_message = NULL,
            failure_detail = NULL, output_hash = NULL, started_at = NULL, finished_at = NULL,
            updated_at = ?
        WHERE status <> ?`
	args := []any{StatusPending, formatTime(s.now()), StatusPending}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		args = append(args, statusArgs(statuses)...)
	}
	res, err := s.session.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageError("reset", err)
	}
	return res.RowsAffected()
}

// RecoverActive returns jobs left active by an interrupted run to pending.
// Only call it while holding the encoder lock.
func (s *Store) RecoverActive(ctx context.Context) (int64, error) {
	res, err := s.session.ExecContext(ctx,
		`UPDATE jobs
         SET status = ?, status_message = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending, RecoveredMessage, formatTime(s.now()), StatusActive,
	)
	if err != nil {
		return 0, storageError("recover active", err)
	}
	return res.RowsAffected()
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"reencode/internal/database"
	"reencode/internal/services"
)

// Store manages job persistence on a shared database session.
type Store struct {
	session *database.Session
	now     func() time.Time
}

// NewStore binds a store to the session whose transaction it writes into.
func NewStore(session *database.Session) *Store {
	return &Store{session: session, now: func() time.Time { return time.Now().UTC() }}
}

// Session returns the session the store writes into.
func (s *Store) Session() *database.Session {
	return s.session
}

// Get fetches a job by identifier. It returns nil when the job does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.session.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get", err)
	}
	return job, nil
}

// GetByPath fetches the job for a source path, compared case-insensitively.
func (s *Store) GetByPath(ctx context.Context, path string) (*Job, error) {
	key := PathKey(path)
	if key == "" {
		return nil, nil
	}
	row := s.session.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE source_key = ?`, key)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get by path", err)
	}
	return job, nil
}

// Find returns jobs matching any of the statuses in admission order. No
// statuses returns every job.
func (s *Store) Find(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	query += ` ORDER BY id`
	rows, err := s.session.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("find", err)
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, storageError("find", err)
	}
	return jobs, nil
}

// Count returns the number of jobs matching any of the statuses. No statuses
// counts every job.
func (s *Store) Count(ctx context.Context, statuses ...Status) (int, error) {
	query := `SELECT COUNT(1) FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	var count int
	if err := s.session.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, storageError("count", err)
	}
	return count, nil
}

// Stats returns job counts for every status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.session.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, storageError("stats", err)
	}
	defer rows.Close()
	stats := make(Stats, len(allStatuses))
	for _, status := range allStatuses {
		stats[status] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storageError("stats", err)
		}
		stats[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("stats", err)
	}
	return stats, nil
}

// Upsert inserts or replaces a job. An existing record is matched first by
// source path and then by id; the job's ID and timestamps are updated in place.
// A record that is active is never replaced and returns ErrAlreadyActive. The
// lookup runs inside the session's write transaction so an encoder in another
// process cannot claim the record between the check and the write.
func (s *Store) Upsert(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, services.Wrap(services.ErrValidation, "queue", "upsert", "job is nil", nil)
	}
	if err := s.session.Begin(ctx); err != nil {
		return nil, storageError("upsert", err)
	}
	existing, err := s.GetByPath(ctx, job.SourcePath)
	if err != nil {
		return nil, err
	}
	if existing == nil && job.ID != 0 {
		if existing, err = s.Get(ctx, job.ID); err != nil {
			return nil, err
		}
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.StereoMode == "" {
		job.StereoMode = StereoMono
	}
	if existing != nil {
		if existing.Status == StatusActive {
			return nil, services.Wrap(services.ErrAlreadyActive, "queue", "upsert",
				fmt.Sprintf("job %d for %s is running", existing.ID, existing.SourcePath), nil)
		}
		job.ID = existing.ID
		job.CreatedAt = existing.CreatedAt
		return job, s.update(ctx, job)
	}
	return job, s.insert(ctx, job)
}

// Update persists every field of an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil || job.ID == 0 {
		return services.Wrap(services.ErrValidation, "queue", "update", "job has no id", nil)
	}
	return s.update(ctx, job)
}

func (s *Store) insert(ctx context.Context, job *Job) error {
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	streams, err := encodeStreams(job.Streams)
	if err != nil {
		return services.Wrap(services.ErrValidation, "queue", "insert", "encode streams", err)
	}
	kind, message, detail := failureColumns(job.Failure)
	res, err := s.session.ExecContext(ctx,
		`INSERT INTO jobs (
            source_path, source_key, output_path, streams_json, video_codec, audio_codec,
            subtitle_codec, extra_parameters, stereo_mode, status, status_message,
            failure_kind, failure_message, failure_detail, source_hash, output_hash,
            series, season, episode, episode_name, source_size, output_size,
            created_at, updated_at, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.SourcePath,
		PathKey(job.SourcePath),
		job.OutputPath,
		streams,
		nullableString(job.VideoCodec),
		nullableString(job.AudioCodec),
		nullableString(job.SubtitleCodec),
		nullableString(job.ExtraParameters),
		string(job.StereoMode),
		string(job.Status),
		nullableString(job.StatusMessage),
		kind, message, detail,
		nullableString(job.SourceHash),
		nullableString(job.OutputHash),
		nullableString(job.Series),
		nullableInt(job.Season),
		job.Episode,
		nullableString(job.EpisodeName),
		job.SourceSize,
		job.OutputSize,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		return storageError("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageError("insert", fmt.Errorf("last insert id: %w", err))
	}
	job.ID = id
	return nil
}

func (s *Store) update(ctx context.Context, job *Job) error {
	job.UpdatedAt = s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	streams, err := encodeStreams(job.Streams)
	if err != nil {
		return services.Wrap(services.ErrValidation, "queue", "update", "encode streams", err)
	}
	kind, message, detail := failureColumns(job.Failure)
	res, err := s.session.ExecContext(ctx,
		`UPDATE jobs
         SET source_path = ?, source_key = ?, output_path = ?, streams_json = ?,
             video_codec = ?, audio_codec = ?, subtitle_codec = ?, extra_parameters = ?,
             stereo_mode = ?, status = ?, status_message = ?,
             failure_kind = ?, failure_message = ?, failure_detail = ?,
             source_hash = ?, output_hash = ?, series = ?, season = ?, episode = ?,
             episode_name = ?, source_size = ?, output_size = ?,
             created_at = ?, updated_at = ?, started_at = ?, finished_at = ?
         WHERE id = ?`,
		job.SourcePath,
		PathKey(job.SourcePath),
		job.OutputPath,
		streams,
		nullableString(job.VideoCodec),
		nullableString(job.AudioCodec),
		nullableString(job.SubtitleCodec),
		nullableString(job.ExtraParameters),
		string(job.StereoMode),
		string(job.Status),
		nullableString(job.StatusMessage),
		kind, message, detail,
		nullableString(job.SourceHash),
		nullableString(job.OutputHash),
		nullableString(job.Series),
		nullableInt(job.Season),
		job.Episode,
		nullableString(job.EpisodeName),
		job.SourceSize,
		job.OutputSize,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return storageError("update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "update", fmt.Sprintf("job %d", job.ID), nil)
	}
	return nil
}

// DeleteByStatus removes jobs in the given statuses and returns how many were
// deleted. No statuses removes pending, completed, and failed jobs. Active
// jobs are never deleted this way.
func (s *Store) DeleteByStatus(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusPending, StatusCompleted, StatusFailed}
	}
	if slices.Contains(statuses, StatusActive) {
		return 0, services.Wrap(services.ErrValidation, "queue", "delete", "active jobs cannot be deleted", nil)
	}
	res, err := s.session.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (`+makePlaceholders(len(statuses))+`)`,
		statusArgs(statuses)...,
	)
	if err != nil {
		return 0, storageError("delete by status", err)
	}
	return res.RowsAffected()
}

// DeleteByID removes a single job. Active jobs are refused.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "queue", "delete", fmt.Sprintf("job %d", id), nil)
	}
	if job.Status == StatusActive {
		return services.Wrap(services.ErrAlreadyActive, "queue", "delete", fmt.Sprintf("job %d is running", id), nil)
	}
	res, err := s.session.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND status <> ?`, id, StatusActive)
	if err != nil {
		return storageError("delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrAlreadyActive, "queue", "delete", fmt.Sprintf("job %d started meanwhile", id), nil)
	}
	return nil
}

// ExistsByContent reports whether a completed job already consumed the same
// bytes from a different path or produced them as output. Pending, active, and
// failed jobs never count.
func (s *Store) ExistsByContent(ctx context.Context, path, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var one int
	err := s.session.QueryRowContext(ctx,
		`SELECT 1 FROM jobs
         WHERE status = ?
           AND ((source_hash = ? AND source_key <> ?) OR output_hash = ?)
         LIMIT 1`,
		StatusCompleted, hash, PathKey(path), hash,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageError("exists by content", err)
	}
	return true, nil
}

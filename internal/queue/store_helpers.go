package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"reencode/internal/services"
)

const jobColumns = "id, source_path, output_path, streams_json, video_codec, audio_codec, subtitle_codec, extra_parameters, stereo_mode, status, status_message, failure_kind, failure_message, failure_detail, source_hash, output_hash, series, season, episode, episode_name, source_size, output_size, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job            Job
		streamsJSON    sql.NullString
		videoCodec     sql.NullString
		audioCodec     sql.NullString
		subtitleCodec  sql.NullString
		extraParams    sql.NullString
		stereoMode     string
		status         string
		statusMessage  sql.NullString
		failureKind    sql.NullString
		failureMessage sql.NullString
		failureDetail  sql.NullString
		sourceHash     sql.NullString
		outputHash     sql.NullString
		series         sql.NullString
		season         sql.NullInt64
		episodeName    sql.NullString
		createdRaw     string
		updatedRaw     string
		startedRaw     sql.NullString
		finishedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&job.SourcePath,
		&job.OutputPath,
		&streamsJSON,
		&videoCodec,
		&audioCodec,
		&subtitleCodec,
		&extraParams,
		&stereoMode,
		&status,
		&statusMessage,
		&failureKind,
		&failureMessage,
		&failureDetail,
		&sourceHash,
		&outputHash,
		&series,
		&season,
		&job.Episode,
		&episodeName,
		&job.SourceSize,
		&job.OutputSize,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	if streamsJSON.Valid && streamsJSON.String != "" {
		if err := json.Unmarshal([]byte(streamsJSON.String), &job.Streams); err != nil {
			return nil, err
		}
	}
	job.VideoCodec = videoCodec.String
	job.AudioCodec = audioCodec.String
	job.SubtitleCodec = subtitleCodec.String
	job.ExtraParameters = extraParams.String
	job.StereoMode = StereoMode(stereoMode)
	job.Status = Status(status)
	job.StatusMessage = statusMessage.String
	if failureKind.Valid && failureKind.String != "" {
		job.Failure = &Failure{
			Kind:    failureKind.String,
			Message: failureMessage.String,
			Detail:  failureDetail.String,
		}
	}
	job.SourceHash = sourceHash.String
	job.OutputHash = outputHash.String
	job.Series = series.String
	if season.Valid {
		value := int(season.Int64)
		job.Season = &value
	}
	job.EpisodeName = episodeName.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.FinishedAt = parseNullableTime(finishedRaw)
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func storageError(operation string, err error) error {
	return services.Wrap(services.ErrStorage, "queue", operation, "", err)
}

func encodeStreams(streams []int) (any, error) {
	if len(streams) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(streams)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func failureColumns(f *Failure) (kind, message, detail any) {
	if f == nil || f.Kind == "" {
		return nil, nil, nil
	}
	return f.Kind, nullableString(f.Message), nullableString(f.Detail)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return args
}

package rewrite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reencode/internal/database"
	"reencode/internal/services"
)

const ruleColumns = "r.id, r.bucket_id, b.series_name, r.old_season, r.old_episode, r.new_season, r.new_episode, r.new_series_name, r.updated_at"

const ruleOrder = " ORDER BY r.old_episode DESC NULLS LAST, r.old_season DESC NULLS LAST, r.id"

// Store persists rule buckets on a shared database session.
type Store struct {
	session *database.Session
	now     func() time.Time
}

// NewStore binds a rule store to the session whose transaction it writes into.
func NewStore(session *database.Session) *Store {
	return &Store{session: session, now: func() time.Time { return time.Now().UTC() }}
}

// Session returns the session the store writes into.
func (s *Store) Session() *database.Session {
	return s.session
}

// FindRules returns a series' rules, highest old episode first, then highest
// old season. Rules without those filters sort last.
func (s *Store) FindRules(ctx context.Context, series string) ([]Rule, error) {
	key := SeriesKey(series)
	if key == "" {
		return nil, nil
	}
	rows, err := s.session.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rewrite_rules r JOIN rewrite_buckets b ON b.id = r.bucket_id
		WHERE b.series_key = ?`+ruleOrder, key)
	if err != nil {
		return nil, storageError("find rules", err)
	}
	rules, err := scanRules(rows)
	if err != nil {
		return nil, storageError("find rules", err)
	}
	return rules, nil
}

// AllRules returns every rule grouped by series name.
func (s *Store) AllRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.session.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rewrite_rules r JOIN rewrite_buckets b ON b.id = r.bucket_id
		ORDER BY b.series_key, r.old_episode DESC NULLS LAST, r.old_season DESC NULLS LAST, r.id`)
	if err != nil {
		return nil, storageError("list rules", err)
	}
	rules, err := scanRules(rows)
	if err != nil {
		return nil, storageError("list rules", err)
	}
	return rules, nil
}

// Upsert writes criteria into the series bucket, creating the bucket when
// needed. The bucket's placeholder rule is overwritten when one exists,
// otherwise a new rule is appended. The write is left uncommitted.
func (s *Store) Upsert(ctx context.Context, c Criteria) (*Rule, error) {
	bucketID, seriesName, err := s.ensureBucket(ctx, c.Series)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rule := &Rule{
		BucketID:      bucketID,
		Series:        seriesName,
		OldSeason:     c.OldSeason,
		OldEpisode:    c.OldEpisode,
		NewSeason:     c.NewSeason,
		NewEpisode:    c.NewEpisode,
		NewSeriesName: c.NewSeriesName,
		UpdatedAt:     now,
	}

	var placeholderID int64
	err = s.session.QueryRowContext(ctx,
		`SELECT id FROM rewrite_rules WHERE bucket_id = ? AND old_season IS NULL AND old_episode IS NULL ORDER BY id LIMIT 1`,
		bucketID,
	).Scan(&placeholderID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.session.ExecContext(ctx,
			`INSERT INTO rewrite_rules (bucket_id, old_season, old_episode, new_season, new_episode, new_series_name, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			bucketID,
			nullableInt(c.OldSeason),
			nullableInt(c.OldEpisode),
			nullableInt(c.NewSeason),
			nullableInt(c.NewEpisode),
			nullableString(c.NewSeriesName),
			formatTime(now),
		)
		if err != nil {
			return nil, storageError("insert rule", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, storageError("insert rule", err)
		}
		rule.ID = id
	case err != nil:
		return nil, storageError("find placeholder", err)
	default:
		if _, err := s.session.ExecContext(ctx,
			`UPDATE rewrite_rules SET old_season = ?, old_episode = ?, new_season = ?, new_episode = ?, new_series_name = ?, updated_at = ?
			WHERE id = ?`,
			nullableInt(c.OldSeason),
			nullableInt(c.OldEpisode),
			nullableInt(c.NewSeason),
			nullableInt(c.NewEpisode),
			nullableString(c.NewSeriesName),
			formatTime(now),
			placeholderID,
		); err != nil {
			return nil, storageError("update rule", err)
		}
		rule.ID = placeholderID
	}
	return rule, nil
}

func (s *Store) ensureBucket(ctx context.Context, series string) (int64, string, error) {
	key := SeriesKey(series)
	if key == "" {
		return 0, "", services.Wrap(services.ErrValidation, "rewrite", "ensure bucket", "series is required", nil)
	}
	var (
		id   int64
		name string
	)
	err := s.session.QueryRowContext(ctx, `SELECT id, series_name FROM rewrite_buckets WHERE series_key = ?`, key).Scan(&id, &name)
	if err == nil {
		return id, name, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, "", storageError("find bucket", err)
	}
	res, err := s.session.ExecContext(ctx,
		`INSERT INTO rewrite_buckets (series_name, series_key, created_at) VALUES (?, ?, ?)`,
		series, key, formatTime(s.now()))
	if err != nil {
		return 0, "", storageError("create bucket", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, "", storageError("create bucket", err)
	}
	return id, series, nil
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var (
			rule       Rule
			oldSeason  sql.NullInt64
			oldEpisode sql.NullInt64
			newSeason  sql.NullInt64
			newEpisode sql.NullInt64
			newName    sql.NullString
			updatedRaw string
		)
		if err := rows.Scan(&rule.ID, &rule.BucketID, &rule.Series, &oldSeason, &oldEpisode, &newSeason, &newEpisode, &newName, &updatedRaw); err != nil {
			return nil, err
		}
		rule.OldSeason = intPointer(oldSeason)
		rule.OldEpisode = intPointer(oldEpisode)
		rule.NewSeason = intPointer(newSeason)
		rule.NewEpisode = intPointer(newEpisode)
		rule.NewSeriesName = newName.String
		if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
			rule.UpdatedAt = updated
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func storageError(operation string, err error) error {
	return services.Wrap(services.ErrStorage, "rewrite", operation, "", err)
}

func intPointer(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

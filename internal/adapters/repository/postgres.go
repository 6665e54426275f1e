package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/metrics"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Schema creates the tables used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL DEFAULT '',
	access_token   TEXT NOT NULL DEFAULT '',
	last_synced_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS readings (
	user_id   TEXT NOT NULL REFERENCES users(id),
	metric    TEXT NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	value     DOUBLE PRECISION NOT NULL DEFAULT 0,
	systolic  INTEGER NOT NULL DEFAULT 0,
	diastolic INTEGER NOT NULL DEFAULT 0,
	activity  TEXT NOT NULL DEFAULT 'resting',
	PRIMARY KEY (user_id, metric, ts)
);
CREATE TABLE IF NOT EXISTS sleep_intervals (
	user_id        TEXT NOT NULL REFERENCES users(id),
	start_time     TIMESTAMPTZ NOT NULL,
	end_time       TIMESTAMPTZ NOT NULL,
	duration_hours DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (user_id, start_time, end_time)
);
`

type userRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	AccessToken  string       `db:"access_token"`
	LastSyncedAt sql.NullTime `db:"last_synced_at"`
}

func (r userRow) toModel() model.User {
	u := model.User{ID: r.ID, Email: r.Email, AccessToken: r.AccessToken}
	if r.LastSyncedAt.Valid {
		t := r.LastSyncedAt.Time.UTC()
		u.LastSyncedAt = &t
	}
	return u
}

type readingRow struct {
	UserID    string    `db:"user_id"`
	Metric    string    `db:"metric"`
	Timestamp time.Time `db:"ts"`
	Value     float64   `db:"value"`
	Systolic  int       `db:"systolic"`
	Diastolic int       `db:"diastolic"`
	Activity  string    `db:"activity"`
}

type sleepRow struct {
	UserID        string    `db:"user_id"`
	Start         time.Time `db:"start_time"`
	End           time.Time `db:"end_time"`
	DurationHours float64   `db:"duration_hours"`
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to dsn.
func NewPostgresStore(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStoreFromDB(db, opts...), nil
}

// NewPostgresStoreFromDB wraps an existing handle.
func NewPostgresStoreFromDB(db *sqlx.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates missing tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ListUsers implements Store.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, email, access_token, last_synced_at FROM users WHERE access_token <> '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// GetUser implements Store.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, email, access_token, last_synced_at FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return row.toModel(), nil
}

// CreateUser implements Store.
func (s *PostgresStore) CreateUser(ctx context.Context, u model.User) error {
	var wm sql.NullTime
	if u.LastSyncedAt != nil {
		wm = sql.NullTime{Time: u.LastSyncedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, access_token, last_synced_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.AccessToken, wm)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

// SetAccessToken implements Store.
func (s *PostgresStore) SetAccessToken(ctx context.Context, id, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET access_token = $1 WHERE id = $2`, token, id)
	if err != nil {
		return fmt.Errorf("set token %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReadingTimestamps implements Store.
func (s *PostgresStore) ReadingTimestamps(ctx context.Context, userID string, kind model.MetricKind, from, to time.Time) ([]time.Time, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	var out []time.Time
	err := s.db.SelectContext(ctx, &out,
		`SELECT ts FROM readings WHERE user_id = $1 AND metric = $2 AND ts >= $3 AND ts < $4 ORDER BY ts`,
		userID, kind.String(), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("reading timestamps: %w", err)
	}
	for i := range out {
		out[i] = out[i].UTC()
	}
	return out, nil
}

// SleepIntervals implements Store.
func (s *PostgresStore) SleepIntervals(ctx context.Context, userID string, from, to time.Time) ([]model.SleepInterval, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	var rows []sleepRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, start_time, end_time, duration_hours FROM sleep_intervals
		 WHERE user_id = $1 AND start_time < $3 AND end_time > $2 ORDER BY start_time`,
		userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("sleep intervals: %w", err)
	}
	out := make([]model.SleepInterval, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.SleepInterval{
			UserID: r.UserID, Start: r.Start.UTC(), End: r.End.UTC(), DurationHours: r.DurationHours,
		})
	}
	return out, nil
}

// Readings implements Store.
func (s *PostgresStore) Readings(ctx context.Context, userID string, kinds []model.MetricKind, from, to time.Time) ([]model.Reading, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	query := `SELECT user_id, metric, ts, value, systolic, diastolic, activity FROM readings
		 WHERE user_id = $1 AND ts >= $2 AND ts < $3`
	args := []interface{}{userID, from.UTC(), to.UTC()}
	if len(names) > 0 {
		query += ` AND metric = ANY($4)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY ts, metric`

	var rows []readingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("readings: %w", err)
	}
	out := make([]model.Reading, 0, len(rows))
	for _, r := range rows {
		kind, ok := model.ParseMetricKind(r.Metric)
		if !ok {
			continue
		}
		out = append(out, model.Reading{
			UserID:    r.UserID,
			Metric:    kind,
			Timestamp: r.Timestamp.UTC(),
			Value:     r.Value,
			Systolic:  r.Systolic,
			Diastolic: r.Diastolic,
			Activity:  r.Activity,
		})
	}
	return out, nil
}

// Commit implements Store inside one transaction.
func (s *PostgresStore) Commit(ctx context.Context, batch model.Batch, watermark time.Time) (res CommitResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryCommitLatency(float64(time.Since(start).Milliseconds())) }()

	res.PerMetric = make(map[model.MetricKind]int)
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range batch.Readings {
		ts := model.NormalizeTime(r.Timestamp)
		out, execErr := tx.ExecContext(ctx,
			`INSERT INTO readings (user_id, metric, ts, value, systolic, diastolic, activity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING`,
			batch.UserID, r.Metric.String(), ts, r.Value, r.Systolic, r.Diastolic, r.Activity)
		if execErr != nil {
			return CommitResult{}, fmt.Errorf("insert reading: %w", execErr)
		}
		if n, _ := out.RowsAffected(); n == 0 {
			res.Duplicates++
			continue
		}
		res.Readings++
		res.PerMetric[r.Metric]++
	}
	for _, iv := range batch.Sleep {
		out, execErr := tx.ExecContext(ctx,
			`INSERT INTO sleep_intervals (user_id, start_time, end_time, duration_hours)
			 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			batch.UserID, iv.Start.UTC(), iv.End.UTC(), iv.DurationHours)
		if execErr != nil {
			return CommitResult{}, fmt.Errorf("insert sleep: %w", execErr)
		}
		if n, _ := out.RowsAffected(); n == 0 {
			res.Duplicates++
			continue
		}
		res.Sleep++
	}
	if !watermark.IsZero() {
		if _, err = tx.ExecContext(ctx, `UPDATE users SET last_synced_at = $1 WHERE id = $2`,
			model.NormalizeTime(watermark), batch.UserID); err != nil {
			return CommitResult{}, fmt.Errorf("update watermark: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{PerMetric: make(map[string]int), TakenAt: time.Now().UTC()}
	if err := s.db.GetContext(ctx, &st.Users, `SELECT COUNT(*) FROM users WHERE access_token <> ''`); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.SleepIntervals, `SELECT COUNT(*) FROM sleep_intervals`); err != nil {
		return Stats{}, fmt.Errorf("count sleep: %w", err)
	}
	var per []struct {
		Metric string `db:"metric"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &per, `SELECT metric, COUNT(*) AS n FROM readings GROUP BY metric`); err != nil {
		return Stats{}, fmt.Errorf("count readings: %w", err)
	}
	for _, p := range per {
		st.PerMetric[p.Metric] = p.N
		st.Readings += p.N
	}
	metrics.UpdateTrackedUsers(st.Users)
	return st, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/vitalsync/internal/domain/model"
)

func setupMockPostgresStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresStoreFromDB(sqlx.NewDb(db, "postgres"))
}

func TestPostgresGetUser_Success(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	wm := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "email", "access_token", "last_synced_at"}).
		AddRow("u1", "a@b.c", "tok", wm)
	mock.ExpectQuery(`SELECT id, email, access_token, last_synced_at FROM users WHERE id`).
		WithArgs("u1").
		WillReturnRows(rows)

	u, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "tok", u.AccessToken)
	require.NotNil(t, u.LastSyncedAt)
	assert.True(t, u.LastSyncedAt.Equal(wm))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetUser_NotFound(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, email`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUser_Duplicate(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u1", "", "tok", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateUser(context.Background(), model.User{ID: "u1", AccessToken: "tok"})
	assert.ErrorIs(t, err, ErrUserExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommit_SkipsDuplicates(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	batch := model.Batch{
		UserID: "u1",
		Readings: []model.Reading{
			{Metric: model.HeartRate, Timestamp: ts, Value: 61, Activity: model.ActivityResting},
			{Metric: model.HeartRate, Timestamp: ts.Add(time.Minute), Value: 62, Activity: model.ActivityResting},
		},
		Sleep: []model.SleepInterval{model.NewSleepInterval("u1", ts.Add(-8*time.Hour), ts.Add(-time.Hour))},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs("u1", "heart_rate", ts, 61.0, 0, 0, model.ActivityResting).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs("u1", "heart_rate", ts.Add(time.Minute), 62.0, 0, 0, model.ActivityResting).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO sleep_intervals`).
		WithArgs("u1", sqlmock.AnyArg(), sqlmock.AnyArg(), 7.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET last_synced_at`).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := store.Commit(context.Background(), batch, ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Readings)
	assert.Equal(t, 1, res.Sleep)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.PerMetric[model.HeartRate])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommit_RollsBackOnError(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO readings`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.Commit(context.Background(), model.Batch{
		UserID:   "u1",
		Readings: []model.Reading{{Metric: model.SpO2, Timestamp: ts, Value: 97}},
	}, ts)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert reading")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingTimestamps(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ts := from.Add(8 * time.Hour)
	mock.ExpectQuery(`SELECT ts FROM readings`).
		WithArgs("u1", "spo2", from, from.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"ts"}).AddRow(ts))

	out, err := store.ReadingTimestamps(context.Background(), "u1", model.SpO2, from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadings_FilterByKind(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"user_id", "metric", "ts", "value", "systolic", "diastolic", "activity"}).
		AddRow("u1", "blood_pressure", from.Add(time.Hour), 0.0, 118, 72, "resting").
		AddRow("u1", "bogus", from.Add(2*time.Hour), 1.0, 0, 0, "resting")
	mock.ExpectQuery(`SELECT user_id, metric, ts, value, systolic, diastolic, activity FROM readings`).
		WithArgs("u1", from, from.Add(24*time.Hour), sqlmock.AnyArg()).
		WillReturnRows(rows)

	out, err := store.Readings(context.Background(), "u1", []model.MetricKind{model.BloodPressure}, from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.BloodPressure, out[0].Metric)
	assert.Equal(t, 118, out[0].Systolic)
	assert.Equal(t, 72, out[0].Diastolic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sleep_intervals`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT metric, COUNT\(\*\) AS n FROM readings`).
		WillReturnRows(sqlmock.NewRows([]string{"metric", "n"}).AddRow("heart_rate", 10).AddRow("spo2", 4))

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Users)
	assert.Equal(t, 3, st.SleepIntervals)
	assert.Equal(t, 14, st.Readings)
	assert.Equal(t, 10, st.PerMetric["heart_rate"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// Package repository persists users, readings and sleep intervals.
package repository

import (
	"context"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

// CommitResult reports what a commit actually wrote.
type CommitResult struct {
	Readings   int
	Sleep      int
	Duplicates int
	PerMetric  map[model.MetricKind]int
}

// Added returns the number of new rows.
func (r CommitResult) Added() int { return r.Readings + r.Sleep }

// Stats is a point-in-time summary of the store.
type Stats struct {
	Users          int            `json:"users"`
	Readings       int            `json:"readings"`
	SleepIntervals int            `json:"sleep_intervals"`
	PerMetric      map[string]int `json:"per_metric"`
	TakenAt        time.Time      `json:"taken_at"`
}

// Store provides read/write access to synced biometric data.
type Store interface {
	// ListUsers returns users holding an access token.
	ListUsers(ctx context.Context) ([]model.User, error)
	// GetUser returns ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id string) (model.User, error)
	// CreateUser returns ErrUserExists when the id is taken.
	CreateUser(ctx context.Context, u model.User) error
	// SetAccessToken replaces the user's provider token.
	SetAccessToken(ctx context.Context, id, token string) error

	// ReadingTimestamps lists stored timestamps of one metric in [from, to).
	ReadingTimestamps(ctx context.Context, userID string, kind model.MetricKind, from, to time.Time) ([]time.Time, error)
	// SleepIntervals lists stored intervals overlapping [from, to).
	SleepIntervals(ctx context.Context, userID string, from, to time.Time) ([]model.SleepInterval, error)
	// Readings lists readings of the given kinds in [from, to) ordered by timestamp.
	// An empty kinds list means every kind.
	Readings(ctx context.Context, userID string, kinds []model.MetricKind, from, to time.Time) ([]model.Reading, error)

	// Commit writes the batch and, when watermark is non-zero, the user's
	// last-synced timestamp as one unit. Rows already present are skipped.
	Commit(ctx context.Context, batch model.Batch, watermark time.Time) (CommitResult, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

func checkRange(from, to time.Time) error {
	if !from.Before(to) {
		return ErrInvalidRange
	}
	return nil
}

package model

import "time"

// SyncJob asks a worker to run one user's sync pass.
type SyncJob struct {
	ID           string
	UserID       string
	FallbackDays int
	// Reason records who asked: "api", "schedule" or "cli".
	Reason     string
	EnqueuedAt time.Time
}

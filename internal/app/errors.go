package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted  = errors.New("service not started")
	ErrUserBusy    = errors.New("sync or training already in flight for user")
	ErrQueueFull   = errors.New("sync queue full")
	ErrNoToken     = errors.New("user has no access token")
	ErrInvalidDate = errors.New("invalid date")

	// ErrFallbackTooLarge rejects a requested look-back above the configured maximum.
	ErrFallbackTooLarge = errors.New("fallback days above maximum")
)

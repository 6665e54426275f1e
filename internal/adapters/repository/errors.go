package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrInvalidRange  = errors.New("invalid time range")
	ErrUnknownDriver = errors.New("unknown store driver")
)

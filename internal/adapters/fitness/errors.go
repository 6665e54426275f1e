package fitness

import "errors"

// Sentinel kinds for remote API errors.
var (
	// ErrUnauthorized means the token was rejected; the user's sync must abort.
	ErrUnauthorized = errors.New("remote rejected credentials")
	// ErrRemoteStatus is any other non-success response.
	ErrRemoteStatus = errors.New("remote returned non-success status")
	// ErrTransport covers network failures and timeouts.
	ErrTransport = errors.New("remote transport failure")
)

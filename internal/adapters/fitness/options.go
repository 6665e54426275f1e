package fitness

import "time"

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSessionsURL overrides the sessions endpoint, relative to the base URL
// or absolute.
func WithSessionsURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.sessionsPath = u
		}
	}
}

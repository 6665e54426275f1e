package cache

import "time"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithVerdictTTL sets how long cached verdicts live.
func WithVerdictTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.verdictTTL = ttl
		}
	}
}

// WithLockTTL sets the sync lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// WithTrainingTTL sets the training flag expiry.
func WithTrainingTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.trainingTTL = ttl
		}
	}
}

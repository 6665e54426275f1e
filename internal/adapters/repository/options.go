package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSnapshotInterval sets how often the stats snapshot is rebuilt.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPool sets connection pool limits.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if maxOpen > 0 {
			s.db.SetMaxOpenConns(maxOpen)
		}
		if maxIdle > 0 {
			s.db.SetMaxIdleConns(maxIdle)
		}
		if maxLifetime > 0 {
			s.db.SetConnMaxLifetime(maxLifetime)
		}
	}
}

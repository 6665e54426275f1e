package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vitalsync/internal/config"
)

// Open builds the store named by cfg.Driver. Postgres schemas are migrated
// before the store is returned.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(ctx), nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.DSN,
			WithPool(cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime))
		if err != nil {
			return nil, err
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.Migrate(migrateCtx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

package session

import (
	"context"
	"fmt"

	"pricetracker/internal/config"
)

// Ensure implementations satisfy the interface
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// Open builds the store selected by SESSION_STORE.
func Open(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddress(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
	case "memory", "":
		return NewMemoryStore(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Store)
	}
}

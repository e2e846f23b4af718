package repository

import (
	"context"
	"fmt"

	"pricetracker/internal/config"

	"go.uber.org/zap"
)

// Open builds the store selected by DB_TYPE.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*SQLStore, error) {
	switch cfg.Type {
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, cfg.DSN(), logger)
	case "mysql":
		return NewMySQLStore(ctx, cfg.DSN(), logger)
	case "sqlite", "":
		return NewSQLiteStore(cfg.DSN(), logger)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

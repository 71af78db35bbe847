package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/config"
)

// Open creates the KV backend selected by the storage configuration
func Open(cfg config.StorageConfig, logger *zap.Logger) (KV, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryKV(), nil
	case "file":
		return NewFileKV(cfg.File.Path), nil
	case "redis":
		kv, err := NewRedisKV(RedisConfig{
			URL:            cfg.Redis.URL,
			KeyPrefix:      cfg.Redis.KeyPrefix,
			MaxConnections: cfg.Redis.MaxConnections,
			MinIdleConns:   cfg.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "postgres":
		kv, err := NewPostgresKV(PostgresConfig{
			URL:             cfg.Postgres.URL,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

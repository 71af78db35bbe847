package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig contains database configuration
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS relay_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresKV stores keys in a single PostgreSQL table
type PostgresKV struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresKV connects to PostgreSQL and ensures the table exists
func NewPostgresKV(config PostgresConfig, logger *zap.Logger) (*PostgresKV, error) {
	db, err := sqlx.Connect("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	kv := &PostgresKV{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create relay_kv table: %w", err)
	}

	logger.Info("Postgres store initialized",
		zap.String("database_url", maskURL(config.URL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return kv, nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := p.db.GetContext(ctx, &value, `SELECT value FROM relay_kv WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO relay_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := p.db.ExecContext(ctx, query, key, string(value)); err != nil {
		p.logger.Error("Failed to store key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (p *PostgresKV) Close() error {
	return p.db.Close()
}

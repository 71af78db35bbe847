package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	URL            string
	KeyPrefix      string
	MaxConnections int
	MinIdleConns   int
}

// RedisKV stores keys in Redis under a prefix
type RedisKV struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisKV connects to Redis and verifies the connection
func NewRedisKV(config RedisConfig, logger *zap.Logger) (*RedisKV, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	kv := newRedisKV(redis.NewClient(opts), config.KeyPrefix, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := kv.client.Ping(ctx).Err(); err != nil {
		kv.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis store initialized",
		zap.String("redis_url", maskURL(config.URL)),
		zap.String("key_prefix", config.KeyPrefix),
		zap.Int("max_connections", opts.PoolSize))

	return kv, nil
}

func newRedisKV(client *redis.Client, prefix string, logger *zap.Logger) *RedisKV {
	return &RedisKV{client: client, prefix: prefix, logger: logger}
}

func (r *RedisKV) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Redis get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		r.logger.Error("Redis set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	r.logger.Debug("Key stored", zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}

// Close closes the Redis connection
func (r *RedisKV) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// maskURL masks the password of a connection URL for logging
func maskURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}

	scheme := strings.Index(url, "://")
	creds := url[:at]
	if scheme >= 0 {
		creds = url[scheme+3 : at]
	}

	colon := strings.Index(creds, ":")
	if colon < 0 {
		return url
	}

	start := at - len(creds)
	return url[:start+colon+1] + "***" + url[at:]
}

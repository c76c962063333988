package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/worldview-app/apiserver/config"
)

const (
	defaultRedisPrefix  = "worldview:countries:"
	redisPingTimeout    = 5 * time.Second
	redisClearBatchSize = 500
)

var _ Cache = (*Redis)(nil)

// Redis stores responses in a shared redis instance so several API replicas
// reuse each other's upstream fetches. Redis errors degrade to cache misses.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedis connects to redis using cfg and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "redis cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	return value, true
}

// Set stores value with a PX expiry. Redis treats a zero expiration as
// "never expire", so a non-positive ttl removes the key instead.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	var err error
	if ttl <= 0 {
		err = r.client.Del(ctx, r.prefix+key).Err()
	} else {
		err = r.client.Set(ctx, r.prefix+key, value, ttl).Err()
	}
	if err != nil {
		r.logger.WarnContext(ctx, "redis cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Clear deletes every key under the configured prefix.
func (r *Redis) Clear(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", redisClearBatchSize).Result()
		if err != nil {
			r.logger.WarnContext(ctx, "redis cache clear failed", slog.Any("error", err))
			return
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				r.logger.WarnContext(ctx, "redis cache clear failed", slog.Any("error", err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

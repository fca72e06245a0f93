// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/helios/internal/platform/ctxutil"
)

// Redis implements [Cache] on top of a go-redis client.
type Redis struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedis wraps an existing client. A nil logger falls back to the request logger.
func NewRedis(client redis.UniversalClient, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Get returns the stored value. Missing keys and backend failures are both misses.
func (c *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log(ctx).WarnContext(ctx, "cache_get_failed", slog.String("key", key), slog.Any("error", err))
		}
		return "", false
	}
	return value, true
}

// Set stores value with a TTL. Failures are logged and dropped.
func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log(ctx).WarnContext(ctx, "cache_set_failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Delete removes keys. Failures are logged and dropped.
func (c *Redis) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log(ctx).WarnContext(ctx, "cache_delete_failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

func (c *Redis) log(ctx context.Context) *slog.Logger {
	if c.logger == nil {
		return ctxutil.GetLogger(ctx)
	}
	return c.logger
}

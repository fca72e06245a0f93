// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/helios/internal/platform/cache"
)

func newRedisCache(t *testing.T) (*miniredis.Miniredis, *cache.Redis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, cache.NewRedis(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

/*
TestRedis_SetGetDelete covers the happy path and TTL expiry.
*/
func TestRedis_SetGetDelete(t *testing.T) {
	server, c := newRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	value, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	server.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", "v", time.Minute)
	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

/*
TestRedis_FailOpen verifies that a dead backend degrades to misses without panicking.
*/
func TestRedis_FailOpen(t *testing.T) {
	server, c := newRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	server.Close()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		c.Set(ctx, "k", "v", time.Minute)
		c.Delete(ctx, "k")
	})
}

func TestJSONHelpers(t *testing.T) {
	_, c := newRedisCache(t)
	ctx := context.Background()

	type snapshot struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	cache.SetJSON(ctx, c, "user:1", snapshot{ID: "1", Email: "a@x.com"}, time.Minute)

	var got snapshot
	require.True(t, cache.GetJSON(ctx, c, "user:1", &got))
	assert.Equal(t, "a@x.com", got.Email)

	c.Set(ctx, "user:2", "{not json", time.Minute)
	assert.False(t, cache.GetJSON(ctx, c, "user:2", &got))
}

func TestNoop(t *testing.T) {
	c := cache.NewNoop()
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Delete(ctx, "k")
}

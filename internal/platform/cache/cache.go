// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache provides the fail-open key/value cache used by the auth domain.

Two implementations exist and one is selected at startup:

  - [Redis]: backed by go-redis, used whenever REDIS_URL is configured.
  - [Noop]: never stores anything; every read is a miss.

# Fail-Open Semantics

A cache is an optimisation and a holder of short-lived flags, never a source
of truth. Every backend error is logged and reported to the caller as a miss
(reads) or silently dropped (writes). Callers therefore never branch on cache
availability, and a Redis outage cannot abort a request.
*/
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the minimal contract the domain depends on.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration)

	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string)
}

// GetJSON reads key and decodes it into target. Undecodable payloads count as a miss.
func GetJSON(ctx context.Context, c Cache, key string, target any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), target) == nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, string(payload), ttl)
}

// # No-op Implementation

// Noop is a Cache that stores nothing.
type Noop struct{}

// NewNoop returns the no-op cache selected when Redis is not configured.
func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, string) (string, bool)           { return "", false }
func (Noop) Set(context.Context, string, string, time.Duration) {}
func (Noop) Delete(context.Context, ...string)                   {}

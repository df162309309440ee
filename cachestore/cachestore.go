// Package cachestore is a small namespaced string cache with per-entry TTLs.
// It backs the short-lived state the rest of the system leans on: "recently
// ran" job markers, cached account summaries, and the last-seen configuration
// revision identifier.
package cachestore

import (
	"context"
	"time"
)

type CacheStore interface {
	// Get returns "" on a miss.
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key, val string, ttl time.Duration) error
	Purge(ctx context.Context, name, key string) error
}

// SetMarker records a presence-only entry, eg a "ran recently" guard.
func SetMarker(ctx context.Context, cs CacheStore, name, key string, ttl time.Duration) error {
	return cs.Set(ctx, name, key, "1", ttl)
}

// HasMarker checks a presence-only entry.
func HasMarker(ctx context.Context, cs CacheStore, name, key string) (bool, error) {
	v, err := cs.Get(ctx, name, key)
	if err != nil {
		return false, err
	}
	return v != "", nil
}

// Package cachestore provides key/value stores with per-entry time-to-live
// used to cache resolved discovery endpoints.
//
// Three backends are available:
//
//   - Memory: process-local LRU (github.com/hashicorp/golang-lru/v2)
//   - Redis: shared cache through github.com/redis/go-redis/v9
//   - SQL: persistent cache in PostgreSQL or SQLite through gorm
//
// Every backend caps TTLs at MaxTTL. Entries are advisory: callers must be
// able to recompute a value on a miss.
package cachestore

import (
	"context"
	"time"
)

// MaxTTL is the longest time-to-live any store will honor.
const MaxTTL = 6 * time.Hour

// Store is a string key/value cache with per-entry expiry.
type Store interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key for ttl, capped at MaxTTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// capTTL clamps ttl into (0, MaxTTL].
func capTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}

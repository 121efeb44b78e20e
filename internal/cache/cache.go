// Package cache provides the advisory read-through cache used for task
// listings and report aggregates. The cache is never authoritative: every
// caller must fall back to storage when an operation fails.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss reports a key with no cached value.
var ErrMiss = errors.New("cache miss")

// Cache is the minimal surface the engine needs. Implementations must
// return ErrMiss for absent keys and plain errors for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// ScanDelete removes every key matching the glob pattern. List cache
	// keys carry arbitrary filter combinations, so invalidation matches
	// by prefix instead of enumerating keys.
	ScanDelete(ctx context.Context, pattern string) error
}

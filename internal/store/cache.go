package store

import (
	"context"
	"time"
)

// Cache is the shared TTL map. Reads of absent keys return domain.ErrNotFound;
// every other failure is a *domain.CacheError.
type Cache interface {
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Set overwrites key. A zero ttl keeps the key until it is deleted.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	// HSetCount writes one hash field, refreshes the hash TTL and returns the
	// number of fields, all in one transaction.
	HSetCount(ctx context.Context, key, field, value string, ttl time.Duration) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// Scan returns every key matching pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

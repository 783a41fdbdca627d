package cache

import (
	"context"
	"time"
)

// Store is a shared key-value store with per-key TTL
type Store interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	// SetNX sets the key only if it is absent, and reports whether it did
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// DeleteIfEquals removes the key only while it still holds value
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

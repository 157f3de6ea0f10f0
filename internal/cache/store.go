// Package cache provides the small TTL key store used for best-effort
// shared state: the payment notification replay memo and staff login
// failure counters.  Nothing stored here enforces a safety invariant, so
// a lost or duplicated entry only costs a repeated side effect.
package cache

import (
	"context"
	"time"
)

// Store is a TTL bounded key store.
type Store interface {
	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) (bool, error)
	// Set marks key as present for ttl.
	Set(ctx context.Context, key string, ttl time.Duration) error
	// Incr increments a fixed window counter. The window starts at the
	// first increment and lasts window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

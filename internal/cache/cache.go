// Package cache implements the core's keyed TTL cache, including
// stale-read-on-failure via GetWithExpiryStatus.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the interface every consumer depends on. Keys follow
// "<domain>:<entity>[:<qualifier>]" (e.g. "price_data:AAPL", "portfolio_live_invest").
type Cache interface {
	// Get returns the cached value and true on hit, or false on miss/expired.
	Get(ctx context.Context, key string, out any) (hit bool)
	// Set stores value under key with the given TTL. ttl<=0 means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// GetWithExpiryStatus returns (hit, expired). expired=true means the
	// value existed but its TTL has elapsed and it is being returned anyway
	// as a stale fallback (caller decides to use it on upstream failure).
	GetWithExpiryStatus(ctx context.Context, key string, out any) (hit bool, expired bool)
	// Clear removes every key the cache manages.
	Clear(ctx context.Context) error
}

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshal(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

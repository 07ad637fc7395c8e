// Package idempotency records which units of work have already been applied
// so redelivered messages collapse to a single effect.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL outlives any plausible redelivery window.
const DefaultTTL = 7 * 24 * time.Hour

// Store is a TTL-bounded set of applied unit-of-work keys. MarkIfFirst is an
// atomic check-and-set: exactly one caller per key observes first=true, no
// matter how many concurrent deliveries race on it.
type Store interface {
	MarkIfFirst(ctx context.Context, key string, ttl time.Duration) (first bool, err error)
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Package dedup records which webhook deliveries already reached their
// target, so a repeated enqueue of the same logical event is a no-op.
//
// The store is shared by every space. Keys are built with Key, which
// namespaces them by event kind, idempotency key and target URL.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultTTL is how long a delivered marker survives.
const DefaultTTL = 24 * time.Hour

// Store is the contract the delivery engine consults before every attempt.
type Store interface {
	// Has reports whether key was marked delivered and has not expired.
	Has(ctx context.Context, key string) (bool, error)

	// Put marks key delivered for ttl.
	Put(ctx context.Context, key string, ttl time.Duration) error
}

const keyPrefix = "press:dedup:"

// Key returns the dedup key for one delivery target of a logical event.
func Key(kind, idempotencyKey, targetURL string) string {
	sum := sha256.Sum256([]byte(targetURL))
	return keyPrefix + kind + ":" + idempotencyKey + ":" + hex.EncodeToString(sum[:8])
}

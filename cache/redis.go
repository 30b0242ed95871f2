package cache

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/press/entry"
)

// scanCount is the COUNT hint of each SCAN round.
const scanCount = 200

// Redis invalidates documents cached in Redis by a read layer sharing the
// same key scheme.
type Redis struct {
	client goredis.UniversalClient
}

var _ Invalidator = (*Redis)(nil)

// NewRedis returns a Redis invalidator.
func NewRedis(client goredis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// InvalidateEntry deletes the entry keys, then scans for and deletes the
// collection's cached listings.
func (r *Redis) InvalidateEntry(ctx context.Context, spaceID, collection string, e *entry.Entry) error {
	if err := r.client.Del(ctx, Keys(spaceID, collection, e)...).Err(); err != nil {
		return fmt.Errorf("press/redis: invalidate entry: %w", err)
	}

	match := ListPrefix(spaceID, collection) + "*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return fmt.Errorf("press/redis: scan listings: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("press/redis: invalidate listings: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

package dedup

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"
)

var _ Store = (*Redis)(nil)

// Redis stores delivered markers as expiring Redis keys.
type Redis struct {
	rdb goredis.UniversalClient
}

// NewRedis returns a Store backed by a go-redis client.
func NewRedis(rdb goredis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

// NewRedisFromKV returns a Store sharing the client of a grove KV store.
func NewRedisFromKV(store *kv.Store) *Redis {
	return &Redis{rdb: redisdriver.UnwrapClient(store)}
}

// Has implements Store.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("press/dedup: redis exists: %w", err)
	}
	return n > 0, nil
}

// Put implements Store.
func (r *Redis) Put(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("press/dedup: redis set: %w", err)
	}
	return nil
}

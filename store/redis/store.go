package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	pressstore "github.com/xraph/press/store"
)

// compile-time interface check
var _ pressstore.Store = (*Store)(nil)

// Store implements store.Store using Redis. Entities are JSON documents
// under press:<kind>:<id>; sorted sets index them.
type Store struct {
	kv  *kv.Store
	rdb goredis.UniversalClient
}

// New creates a new Redis store backed by Grove KV.
func New(store *kv.Store) *Store {
	return &Store{
		kv:  store,
		rdb: redisdriver.UnwrapClient(store),
	}
}

// NewFromClient creates a store on a bare go-redis client.
func NewFromClient(rdb goredis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.kv != nil {
		return s.kv.Ping(ctx)
	}
	return s.rdb.Ping(ctx).Err()
}

// Close closes the KV store, or the client when there is none.
func (s *Store) Close() error {
	if s.kv != nil {
		return s.kv.Close()
	}
	return s.rdb.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isNotFound checks if an error is a KV or Redis not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound) || errors.Is(err, goredis.Nil)
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// getEntity retrieves and decodes a JSON entity.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	var raw []byte
	var err error
	if s.kv != nil {
		raw, err = s.kv.GetRaw(ctx, key)
	} else {
		raw, err = s.rdb.Get(ctx, key).Bytes()
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// setEntity encodes and stores a JSON entity under a KV key.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("press/redis: marshal entity: %w", err)
	}
	if s.kv != nil {
		return s.kv.SetRaw(ctx, key, raw)
	}
	return s.rdb.Set(ctx, key, raw, 0).Err()
}

// deleteEntity removes an entity key.
func (s *Store) deleteEntity(ctx context.Context, key string) error {
	if s.kv != nil {
		return s.kv.Delete(ctx, key)
	}
	return s.rdb.Del(ctx, key).Err()
}

// zRangeByScoreIDs returns all member IDs from a sorted set within a score range.
func (s *Store) zRangeByScoreIDs(ctx context.Context, key string, lo, hi float64) ([]string, error) {
	minStr := "-inf"
	maxStr := "+inf"
	if !math.IsInf(lo, -1) {
		minStr = strconv.FormatFloat(lo, 'f', -1, 64)
	}
	if !math.IsInf(hi, 1) {
		maxStr = strconv.FormatFloat(hi, 'f', -1, 64)
	}
	return s.rdb.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: minStr,
		Max: maxStr,
	}).Result()
}

// loadAll fetches the entities behind ids into models, skipping keys that
// were removed after the index was read.
func loadAll[M any](ctx context.Context, s *Store, prefix string, ids []string) ([]*M, error) {
	out := make([]*M, 0, len(ids))
	for _, memberID := range ids {
		m := new(M)
		if err := s.getEntity(ctx, entityKey(prefix, memberID), m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// applyPagination applies offset and limit to a slice.
func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// applyIDPagination applies offset and limit to index members before they
// are loaded.
func applyIDPagination(ids []string, offset, limit int) []string {
	offset = max(offset, 0)
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

package dedup_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/dedup"
)

func TestKey_Namespacing(t *testing.T) {
	a := dedup.Key("entry.published", "abc", "https://a.example/hook")
	b := dedup.Key("entry.published", "abc", "https://b.example/hook")
	c := dedup.Key("entry.unpublished", "abc", "https://a.example/hook")

	assert.NotEqual(t, a, b, "targets must not share a key")
	assert.NotEqual(t, a, c, "event kinds must not share a key")
	assert.Equal(t, a, dedup.Key("entry.published", "abc", "https://a.example/hook"))
	assert.Contains(t, a, "press:dedup:entry.published:abc:")
}

func exercise(t *testing.T, s dedup.Store) {
	t.Helper()
	ctx := context.Background()
	key := dedup.Key("entry.published", t.Name()+strconv.FormatInt(time.Now().UnixNano(), 10), "https://hook.example")

	has, err := s.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Put(ctx, key, time.Hour))

	has, err = s.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMemory(t *testing.T) {
	exercise(t, dedup.NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := dedup.NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", dedup.DefaultTTL))
	assert.Equal(t, 1, m.Len())

	now = now.Add(dedup.DefaultTTL - time.Second)
	has, _ := m.Has(ctx, "k")
	assert.True(t, has)

	now = now.Add(time.Second)
	has, _ = m.Has(ctx, "k")
	assert.False(t, has)
	assert.Equal(t, 0, m.Len())
}

func TestBadger(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exercise(t, dedup.NewBadger(db))
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	exercise(t, dedup.NewRedis(rdb))
}

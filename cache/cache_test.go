package cache_test

import (
	"context"
	"errors"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/cache"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
)

func testEntry() *entry.Entry {
	return &entry.Entry{ID: id.NewEntryID(), SpaceID: "space_7", CollectionID: "posts", Slug: "hello"}
}

func TestKeysAreTenantScoped(t *testing.T) {
	e := testEntry()
	a := cache.Keys("space_7", "posts", e)
	b := cache.Keys("space_8", "posts", e)

	require.Len(t, a, 2)
	assert.Equal(t, "press:cache:space_7:posts:"+e.ID.String(), a[0])
	assert.Equal(t, "press:cache:space_7:posts:slug:hello", a[1])
	assert.NotEqual(t, a, b)
}

func TestLRUInvalidate(t *testing.T) {
	c, err := cache.NewLRU(16)
	require.NoError(t, err)
	e := testEntry()

	c.Set(cache.EntryKey("space_7", "posts", e.ID.String()), []byte("doc"))
	c.Set(cache.SlugKey("space_7", "posts", "hello"), []byte("doc"))
	c.Set(cache.ListKey("space_7", "posts", "page=1"), []byte("list"))
	c.Set(cache.ListKey("space_7", "pages", "page=1"), []byte("other collection"))
	c.Set(cache.EntryKey("space_8", "posts", e.ID.String()), []byte("other space"))

	require.NoError(t, c.InvalidateEntry(context.Background(), "space_7", "posts", e))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(cache.ListKey("space_7", "pages", "page=1"))
	assert.True(t, ok)
	_, ok = c.Get(cache.EntryKey("space_8", "posts", e.ID.String()))
	assert.True(t, ok)
}

type failing struct{ calls int }

func (f *failing) InvalidateEntry(context.Context, string, string, *entry.Entry) error {
	f.calls++
	return errors.New("backend down")
}

func TestChainRunsEveryInvalidator(t *testing.T) {
	first := &failing{}
	lruCache, err := cache.NewLRU(0)
	require.NoError(t, err)
	e := testEntry()
	lruCache.Set(cache.EntryKey("space_7", "posts", e.ID.String()), []byte("doc"))

	err = cache.Chain{first, lruCache}.InvalidateEntry(context.Background(), "space_7", "posts", e)
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, lruCache.Len())
}

func TestRedisInvalidate(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()

	e := testEntry()
	space := "space_" + id.NewEntryID().String()
	keep := cache.ListKey(space, "pages", "q")
	drop := []string{
		cache.EntryKey(space, "posts", e.ID.String()),
		cache.SlugKey(space, "posts", "hello"),
		cache.ListKey(space, "posts", "q1"),
		cache.ListKey(space, "posts", "q2"),
	}
	for _, k := range append(drop, keep) {
		require.NoError(t, client.Set(ctx, k, "v", 0).Err())
	}
	defer client.Del(ctx, keep)

	require.NoError(t, cache.NewRedis(client).InvalidateEntry(ctx, space, "posts", e))

	n, err := client.Exists(ctx, drop...).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = client.Exists(ctx, keep).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

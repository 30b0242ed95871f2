package cache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xraph/press/entry"
)

// DefaultLRUSize is the number of cached documents kept in process.
const DefaultLRUSize = 4096

// LRU is an in-process read cache of rendered documents. Invalidation drops
// the entry keys and every listing of the collection.
type LRU struct {
	cache *lru.Cache[string, []byte]
}

var _ Invalidator = (*LRU)(nil)

// NewLRU returns an LRU holding up to size documents.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("press: create lru cache: %w", err)
	}
	return &LRU{cache: c}, nil
}

// Get returns a cached document.
func (l *LRU) Get(key string) ([]byte, bool) {
	return l.cache.Get(key)
}

// Set caches a document.
func (l *LRU) Set(key string, value []byte) {
	l.cache.Add(key, value)
}

// Len returns the number of cached documents.
func (l *LRU) Len() int {
	return l.cache.Len()
}

// InvalidateEntry implements Invalidator.
func (l *LRU) InvalidateEntry(_ context.Context, spaceID, collection string, e *entry.Entry) error {
	for _, k := range Keys(spaceID, collection, e) {
		l.cache.Remove(k)
	}

	prefix := ListPrefix(spaceID, collection)
	for _, k := range l.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			l.cache.Remove(k)
		}
	}
	return nil
}

// Package cache invalidates the cached read representations of an entry when
// it is published or unpublished. Keys are namespaced by space, collection and
// entry, so one tenant's invalidation never touches another's cache.
package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/press/entry"
)

// Prefix namespaces every cache key.
const Prefix = "press:cache"

// Invalidator drops the cached views of an entry.
type Invalidator interface {
	InvalidateEntry(ctx context.Context, spaceID, collection string, e *entry.Entry) error
}

// EntryKey is the key of the cached entry document.
func EntryKey(spaceID, collection, entryID string) string {
	return strings.Join([]string{Prefix, spaceID, collection, entryID}, ":")
}

// SlugKey is the key of the entry cached by slug.
func SlugKey(spaceID, collection, slug string) string {
	return strings.Join([]string{Prefix, spaceID, collection, "slug", slug}, ":")
}

// ListPrefix is the prefix shared by every cached listing of a collection.
func ListPrefix(spaceID, collection string) string {
	return strings.Join([]string{Prefix, spaceID, collection, "list"}, ":") + ":"
}

// ListKey is the key of one cached listing, identified by its query.
func ListKey(spaceID, collection, query string) string {
	return ListPrefix(spaceID, collection) + query
}

// Keys returns the exact keys to drop for e.
func Keys(spaceID, collection string, e *entry.Entry) []string {
	keys := []string{EntryKey(spaceID, collection, e.ID.String())}
	if e.Slug != "" {
		keys = append(keys, SlugKey(spaceID, collection, e.Slug))
	}
	return keys
}

// Chain runs several invalidators and joins their errors. Every invalidator
// runs even when an earlier one fails.
type Chain []Invalidator

// InvalidateEntry implements Invalidator.
func (c Chain) InvalidateEntry(ctx context.Context, spaceID, collection string, e *entry.Entry) error {
	var errs []error
	for _, inv := range c {
		if err := inv.InvalidateEntry(ctx, spaceID, collection, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package catalog resolves the collections entries belong to and validates
// entry data against their schemas.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSchemaViolation wraps schema validation failures.
var ErrSchemaViolation = errors.New("press: entry data does not match collection schema")

// Catalog is a caching front for a Source.
type Catalog struct {
	source    Source
	validator *Validator
	cacheTTL  time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cached
}

type cached struct {
	col      *Collection
	loadedAt time.Time
}

// Config configures a Catalog.
type Config struct {
	// CacheTTL bounds how long a resolved collection is reused. Zero caches
	// forever.
	CacheTTL time.Duration
}

// New returns a Catalog reading from source.
func New(source Source, cfg Config, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		source:    source,
		validator: NewValidator(),
		cacheTTL:  cfg.CacheTTL,
		logger:    logger,
		cache:     make(map[string]cached),
	}
}

// Get returns a collection, consulting the cache first.
func (c *Catalog) Get(ctx context.Context, spaceID, handle string) (*Collection, error) {
	key := spaceID + "/" + handle

	c.mu.RLock()
	hit, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && (c.cacheTTL == 0 || time.Since(hit.loadedAt) < c.cacheTTL) {
		return hit.col, nil
	}

	col, err := c.source.GetCollection(ctx, spaceID, handle)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cached{col: col, loadedAt: time.Now()}
	c.mu.Unlock()

	return col, nil
}

// ValidateEntry checks data against the collection's schema. Unknown
// collections and collections without a schema accept any data.
func (c *Catalog) ValidateEntry(ctx context.Context, spaceID, handle string, data map[string]any) error {
	col, err := c.Get(ctx, spaceID, handle)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("press: resolve collection: %w", err)
	}

	if err := c.validator.Validate(col.Schema, data); err != nil {
		c.logger.DebugContext(ctx, "entry data rejected by schema",
			"space_id", spaceID,
			"collection", handle,
			"error", err,
		)
		return fmt.Errorf("%w: %s", ErrSchemaViolation, err.Error())
	}
	return nil
}

// Invalidate drops a cached collection.
func (c *Catalog) Invalidate(spaceID, handle string) {
	c.mu.Lock()
	delete(c.cache, spaceID+"/"+handle)
	c.mu.Unlock()
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrCollectionNotFound is returned by a Source that has no such collection.
var ErrCollectionNotFound = errors.New("press: collection not found")

// Collection is the part of a content type the pipeline needs.
type Collection struct {
	SpaceID string          `json:"space_id"`
	Handle  string          `json:"handle"`
	Name    string          `json:"name"`
	Schema  json.RawMessage `json:"schema,omitempty"`
}

// Source resolves collections. Content type management lives outside this
// module; a Source adapts whatever repository owns it.
type Source interface {
	GetCollection(ctx context.Context, spaceID, handle string) (*Collection, error)
}

// StaticSource is an in-memory Source.
type StaticSource struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewStaticSource returns a Source serving the given collections.
func NewStaticSource(cols ...*Collection) *StaticSource {
	s := &StaticSource{collections: make(map[string]*Collection, len(cols))}
	for _, c := range cols {
		s.Put(c)
	}
	return s
}

// Put adds or replaces a collection.
func (s *StaticSource) Put(c *Collection) {
	s.mu.Lock()
	s.collections[c.SpaceID+"/"+c.Handle] = c
	s.mu.Unlock()
}

// GetCollection implements Source.
func (s *StaticSource) GetCollection(_ context.Context, spaceID, handle string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[spaceID+"/"+handle]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return c, nil
}

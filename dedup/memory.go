package dedup

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Expired keys are dropped lazily.
type Memory struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]time.Time),
		now:   time.Now,
	}
}

// WithClock replaces the clock used to evaluate expiry.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Has implements Store.
func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.items[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.items, key)
		return false, nil
	}
	return true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = m.now().Add(ttl)
	return nil
}

// Len returns the number of unexpired keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, exp := range m.items {
		if now.Before(exp) {
			n++
		}
	}
	return n
}

// Package entry defines the tenant-scoped content record that moves through
// the publishing lifecycle.
package entry

import (
	"errors"
	"time"

	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	// StatusArchived is the terminal unpublished state.
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished, StatusArchived:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when an entry does not exist in the requested space.
	ErrNotFound = errors.New("press: entry not found")

	// ErrConflict is returned when a conditional transition finds the row in a
	// different status than expected.
	ErrConflict = errors.New("press: entry status changed concurrently")
)

// Entry is a content record owned by exactly one space.
type Entry struct {
	entity.Entity

	ID           id.ID          `json:"id"`
	SpaceID      string         `json:"space_id"`
	CollectionID string         `json:"collection"`
	Title        string         `json:"title"`
	Slug         string         `json:"slug"`
	Status       Status         `json:"status"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	UnpublishAt  *time.Time     `json:"unpublish_at,omitempty"`
	Data         map[string]any `json:"data"`
}

// Due reports whether a scheduled entry has reached its publish time.
func (e *Entry) Due(now time.Time) bool {
	return e.PublishedAt != nil && !e.PublishedAt.After(now)
}

// Expired reports whether the entry's unpublish time has passed.
func (e *Entry) Expired(now time.Time) bool {
	return e.UnpublishAt != nil && !e.UnpublishAt.After(now)
}

// Clone returns a copy that shares no maps, slices or time pointers with e.
func (e *Entry) Clone() *Entry {
	cp := *e
	cp.Data = CloneData(e.Data)
	cp.PublishedAt = cloneTime(e.PublishedAt)
	cp.UnpublishAt = cloneTime(e.UnpublishAt)
	return &cp
}

// Snapshot returns the full document captured before a mutation.
func (e *Entry) Snapshot() map[string]any {
	return map[string]any{
		"title": e.Title,
		"slug":  e.Slug,
		"data":  CloneData(e.Data),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CloneData deep-copies a JSON-shaped document. Nested maps and slices are
// copied; scalars are shared.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies one JSON-shaped value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i := range t {
			out[i] = CloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

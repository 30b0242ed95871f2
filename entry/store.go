package entry

import (
	"context"
	"time"

	"github.com/xraph/press/id"
)

// Store is the persistence contract for entries. Every read and write other
// than the sweep queries is scoped by space.
type Store interface {
	// CreateEntry persists a new entry.
	CreateEntry(ctx context.Context, e *Entry) error

	// GetEntry returns the entry with entryID inside spaceID, or ErrNotFound.
	GetEntry(ctx context.Context, spaceID string, entryID id.ID) (*Entry, error)

	// UpdateEntry writes title, slug, data and unpublish time. Status fields
	// are only changed through TransitionEntry.
	UpdateEntry(ctx context.Context, e *Entry) error

	// TransitionEntry writes e's status, publish and unpublish times only if
	// the stored row is still in status from. A row in any other status
	// yields ErrConflict; a missing row yields ErrNotFound.
	TransitionEntry(ctx context.Context, e *Entry, from Status) error

	// QueryScheduled returns scheduled entries across all spaces whose
	// publish time is at or before now, oldest first.
	QueryScheduled(ctx context.Context, now time.Time, limit int) ([]*Entry, error)

	// QueryExpired returns published entries across all spaces whose
	// unpublish time is at or before now, oldest first.
	QueryExpired(ctx context.Context, now time.Time, limit int) ([]*Entry, error)

	// ListEntries returns the entries of a space, newest first.
	ListEntries(ctx context.Context, spaceID string, opts ListOpts) ([]*Entry, error)
}

// Package revision snapshots entry content before every update so that any
// mutation can be inspected and rolled back.
package revision

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
)

var (
	// ErrNotFound is returned when a revision does not exist in the space.
	ErrNotFound = errors.New("press: revision not found")

	// ErrEntryMismatch is returned when restoring a revision onto an entry
	// it was not taken from.
	ErrEntryMismatch = errors.New("press: revision belongs to another entry")
)

// Change is the before and after value of one top-level key.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Diff maps changed top-level keys to their change.
type Diff map[string]Change

// Revision is an immutable snapshot of an entry taken before an update.
type Revision struct {
	ID        id.ID          `json:"id"`
	SpaceID   string         `json:"space_id"`
	EntryID   id.ID          `json:"entry_id"`
	Snapshot  map[string]any `json:"snapshot"`
	Diff      Diff           `json:"diff"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// Clone returns a copy that shares no snapshot or diff values with r.
func (r *Revision) Clone() *Revision {
	cp := *r
	cp.Snapshot = entry.CloneData(r.Snapshot)
	if r.Diff != nil {
		cp.Diff = make(Diff, len(r.Diff))
		for k, c := range r.Diff {
			cp.Diff[k] = Change{From: entry.CloneValue(c.From), To: entry.CloneValue(c.To)}
		}
	}
	return &cp
}

// Data returns the entry data captured in the snapshot: the nested "data"
// document when present, otherwise the snapshot itself. A malformed nested
// value is treated as absent.
func (r *Revision) Data() map[string]any {
	if r.Snapshot == nil {
		return map[string]any{}
	}
	if nested, ok := r.Snapshot["data"].(map[string]any); ok {
		return nested
	}
	return r.Snapshot
}

// ListOpts configures revision listing.
type ListOpts struct {
	Offset int
	Limit  int
}

// Store persists revisions. There is no update or delete.
type Store interface {
	CreateRevision(ctx context.Context, r *Revision) error

	// GetRevision returns a revision of spaceID, or ErrNotFound.
	GetRevision(ctx context.Context, spaceID string, revID id.ID) (*Revision, error)

	// ListRevisions returns the revisions of an entry, newest first.
	ListRevisions(ctx context.Context, spaceID string, entryID id.ID, opts ListOpts) ([]*Revision, error)
}

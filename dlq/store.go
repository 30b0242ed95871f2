package dlq

import (
	"context"
	"time"

	"github.com/xraph/press/id"
)

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// Push adds an exhausted delivery.
	Push(ctx context.Context, e *Entry) error

	// ListDLQ returns entries, newest failure first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	GetDLQ(ctx context.Context, dlqID id.ID) (*Entry, error)

	// MarkReplayed stamps an entry as replayed at t.
	MarkReplayed(ctx context.Context, dlqID id.ID, t time.Time) error

	// Purge removes entries that failed before the given time.
	Purge(ctx context.Context, before time.Time) (int64, error)

	CountDLQ(ctx context.Context) (int64, error)
}

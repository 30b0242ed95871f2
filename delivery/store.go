package delivery

import (
	"context"
	"time"

	"github.com/xraph/press/id"
)

// Store defines the persistence contract for webhook deliveries.
type Store interface {
	// Enqueue creates a pending delivery.
	Enqueue(ctx context.Context, d *Delivery) error

	// EnqueueBatch creates the deliveries of one event atomically.
	EnqueueBatch(ctx context.Context, ds []*Delivery) error

	// Dequeue claims up to limit pending deliveries due at or before now.
	// A claimed delivery is not returned again until it is updated, so
	// concurrent workers never hold the same row.
	Dequeue(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// UpdateDelivery writes the attempt outcome and releases the claim.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListByEntry returns the delivery history of an entry, newest first.
	ListByEntry(ctx context.Context, spaceID string, entryID id.ID, opts ListOpts) ([]*Delivery, error)

	// CountPending returns the number of deliveries awaiting an attempt.
	CountPending(ctx context.Context) (int64, error)
}

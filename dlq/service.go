package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// Enqueuer is the part of delivery.Store a replay needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, d *delivery.Delivery) error
}

// Service manages the dead letter queue.
type Service struct {
	store       Store
	queue       Enqueuer
	maxAttempts int
	logger      *slog.Logger
}

// NewService creates a DLQ service. Replays go to queue with maxAttempts
// fresh attempts.
func NewService(store Store, queue Enqueuer, maxAttempts int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = delivery.DefaultMaxAttempts
	}
	return &Service{
		store:       store,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

var _ delivery.DLQPusher = (*Service)(nil)

// PushFailed records an exhausted delivery. It implements delivery.DLQPusher.
func (svc *Service) PushFailed(ctx context.Context, d *delivery.Delivery, summary string) error {
	now := time.Now().UTC()
	e := &Entry{
		Entity:         entity.At(now),
		ID:             id.NewDLQID(),
		DeliveryID:     d.ID,
		SpaceID:        d.SpaceID,
		Collection:     d.Collection,
		EntryID:        d.EntryID,
		EndpointID:     d.EndpointID,
		Event:          d.Event,
		URL:            d.URL,
		Payload:        d.Payload,
		Secret:         d.Secret,
		IdempotencyKey: d.IdempotencyKey,
		Error:          summary,
		AttemptCount:   d.AttemptCount,
		LastStatusCode: d.LastStatusCode,
		FailedAt:       now,
	}

	if err := svc.store.Push(ctx, e); err != nil {
		return fmt.Errorf("press: push dlq: %w", err)
	}
	return nil
}

// List returns DLQ entries matching opts.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay enqueues a new delivery for the entry with the same idempotency
// key. A receiver that already applied the event sees a duplicate key; a
// target that was marked delivered in the meantime is skipped by the engine.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) (*delivery.Delivery, error) {
	e, err := svc.store.GetDLQ(ctx, dlqID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &delivery.Delivery{
		Entity:         entity.At(now),
		ID:             id.NewDeliveryID(),
		SpaceID:        e.SpaceID,
		Collection:     e.Collection,
		EntryID:        e.EntryID,
		EndpointID:     e.EndpointID,
		Event:          e.Event,
		URL:            e.URL,
		Payload:        e.Payload,
		Secret:         e.Secret,
		IdempotencyKey: e.IdempotencyKey,
		State:          delivery.StatePending,
		MaxAttempts:    svc.maxAttempts,
		NextAttemptAt:  now,
	}

	if err := svc.queue.Enqueue(ctx, d); err != nil {
		return nil, fmt.Errorf("press: replay enqueue: %w", err)
	}
	if err := svc.store.MarkReplayed(ctx, e.ID, now); err != nil {
		return nil, fmt.Errorf("press: replay mark: %w", err)
	}

	svc.logger.InfoContext(ctx, "dlq entry replayed",
		"dlq_id", e.ID,
		"delivery_id", d.ID,
		"url", e.URL,
		"idempotency_key", e.IdempotencyKey,
	)

	return d, nil
}

// ReplayBulk replays every not-yet-replayed entry that failed in [from, to).
func (svc *Service) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	entries, err := svc.store.ListDLQ(ctx, ListOpts{From: &from, To: &to, Pending: true})
	if err != nil {
		return 0, err
	}

	var n int64
	for _, e := range entries {
		if _, err := svc.Replay(ctx, e.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Purge removes entries that failed before the given time.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}

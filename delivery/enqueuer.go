package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
	"github.com/xraph/press/observability"
)

// TargetResolver returns the webhook targets of an event.
type TargetResolver interface {
	Resolve(ctx context.Context, spaceID, collection, kind string) ([]endpoint.Target, error)
}

// Enqueuer turns a publish event into pending deliveries. It only writes to
// the queue; the Engine does the network work.
type Enqueuer struct {
	store       Store
	resolver    TargetResolver
	maxAttempts int
	metrics     *observability.Metrics
	now         func() time.Time
	logger      *slog.Logger
}

// NewEnqueuer returns an Enqueuer. maxAttempts <= 0 uses DefaultMaxAttempts.
func NewEnqueuer(store Store, resolver TargetResolver, maxAttempts int, metrics *observability.Metrics, logger *slog.Logger) *Enqueuer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		store:       store,
		resolver:    resolver,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the clock used for the first attempt time.
func (q *Enqueuer) WithClock(now func() time.Time) *Enqueuer {
	q.now = now
	return q
}

// Build returns one pending delivery per target, all sharing the event's
// idempotency key.
func (q *Enqueuer) Build(evt event.Event, targets []endpoint.Target) []*Delivery {
	now := q.now().UTC()
	key := evt.IdempotencyKey()
	payload := evt.Payload()

	out := make([]*Delivery, 0, len(targets))
	for _, t := range targets {
		out = append(out, &Delivery{
			Entity:         entity.At(now),
			ID:             id.NewDeliveryID(),
			SpaceID:        evt.SpaceID,
			Collection:     evt.CollectionID,
			EntryID:        evt.EntryID,
			EndpointID:     t.EndpointID,
			Event:          string(evt.Kind),
			URL:            t.URL,
			Payload:        payload,
			Secret:         t.Secret,
			RateLimit:      t.RateLimit,
			IdempotencyKey: key,
			State:          StatePending,
			MaxAttempts:    q.maxAttempts,
			NextAttemptAt:  now,
		})
	}
	return out
}

// Enqueue resolves the targets of evt and queues a delivery for each. It
// returns the number queued.
func (q *Enqueuer) Enqueue(ctx context.Context, evt event.Event) (int, error) {
	targets, err := q.resolver.Resolve(ctx, evt.SpaceID, evt.CollectionID, string(evt.Kind))
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	ds := q.Build(evt, targets)
	if err := q.store.EnqueueBatch(ctx, ds); err != nil {
		return 0, fmt.Errorf("press: enqueue deliveries: %w", err)
	}

	q.metrics.RecordEnqueued(len(ds))
	q.logger.DebugContext(ctx, "webhook deliveries enqueued",
		"space_id", evt.SpaceID,
		"collection", evt.CollectionID,
		"entry_id", evt.EntryID,
		"event", evt.Kind,
		"targets", len(ds),
		"idempotency_key", ds[0].IdempotencyKey,
	)

	return len(ds), nil
}

package delivery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/event"
	"github.com/xraph/press/store/memory"
)

type staticResolver struct {
	targets []endpoint.Target
	err     error
	kinds   []string
}

func (r *staticResolver) Resolve(_ context.Context, _, _, kind string) ([]endpoint.Target, error) {
	r.kinds = append(r.kinds, kind)
	return r.targets, r.err
}

func TestEnqueuerOneDeliveryPerTarget(t *testing.T) {
	store := memory.New()
	resolver := &staticResolver{targets: []endpoint.Target{
		{URL: "https://a.example.com/hook", Secret: "s1"},
		{URL: "https://b.example.com/hook", RateLimit: 5},
	}}
	q := delivery.NewEnqueuer(store, resolver, 0, nil, nil)

	ctx := context.Background()
	evt := testEvent()
	n, err := q.Enqueue(ctx, evt)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("queued %d, want 2", n)
	}
	if resolver.kinds[0] != string(event.KindPublished) {
		t.Fatalf("resolved for kind %q", resolver.kinds[0])
	}

	ds, err := store.ListByEntry(ctx, evt.SpaceID, evt.EntryID, delivery.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 2 {
		t.Fatalf("stored %d deliveries", len(ds))
	}
	for _, d := range ds {
		if d.IdempotencyKey != evt.IdempotencyKey() {
			t.Fatalf("idempotency key %q, want %q", d.IdempotencyKey, evt.IdempotencyKey())
		}
		if d.State != delivery.StatePending || d.AttemptCount != 0 {
			t.Fatalf("unexpected initial state: %s/%d", d.State, d.AttemptCount)
		}
		if d.MaxAttempts != delivery.DefaultMaxAttempts {
			t.Fatalf("max attempts = %d", d.MaxAttempts)
		}
		if d.Payload.EntryID != evt.EntryID.String() {
			t.Fatalf("payload entry = %q", d.Payload.EntryID)
		}
	}
}

func TestEnqueuerSameEventSameKey(t *testing.T) {
	q := delivery.NewEnqueuer(memory.New(), &staticResolver{}, 3, nil, nil)
	evt := testEvent()

	first := q.Build(evt, []endpoint.Target{{URL: "https://a.example.com"}})
	second := q.Build(evt, []endpoint.Target{{URL: "https://a.example.com"}})
	if first[0].IdempotencyKey != second[0].IdempotencyKey {
		t.Fatal("re-enqueuing the same event changed the idempotency key")
	}
	if first[0].ID.String() == second[0].ID.String() {
		t.Fatal("deliveries share an id")
	}
}

func TestEnqueuerNoTargets(t *testing.T) {
	store := memory.New()
	q := delivery.NewEnqueuer(store, &staticResolver{}, 3, nil, nil)

	n, err := q.Enqueue(context.Background(), testEvent())
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if c, _ := store.CountPending(context.Background()); c != 0 {
		t.Fatalf("pending = %d", c)
	}
}

func TestEnqueuerResolveError(t *testing.T) {
	boom := errors.New("endpoint store down")
	q := delivery.NewEnqueuer(memory.New(), &staticResolver{err: boom}, 3, nil, nil)

	_, err := q.Enqueue(context.Background(), testEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/id"
	"github.com/xraph/press/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() (*dlq.Service, *memory.Store) {
	store := memory.New()
	return dlq.NewService(store, store, 3, nil), store
}

func exhausted(space, url string) *delivery.Delivery {
	return &delivery.Delivery{
		ID:             id.NewDeliveryID(),
		SpaceID:        space,
		Collection:     "posts",
		EntryID:        id.NewEntryID(),
		Event:          "entry.published",
		URL:            url,
		Secret:         "whsec_abc",
		IdempotencyKey: "key-" + url,
		State:          delivery.StateExhausted,
		AttemptCount:   3,
		MaxAttempts:    3,
		LastStatusCode: 500,
	}
}

func TestPushFailed(t *testing.T) {
	svc, _ := newService()
	d := exhausted("space_1", "https://a.example.com")

	if err := svc.PushFailed(ctx(), d, "webhook failed after 3 attempt(s): HTTP 500"); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.List(ctx(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.DeliveryID.String() != d.ID.String() {
		t.Fatal("delivery id not carried over")
	}
	if e.IdempotencyKey != d.IdempotencyKey || e.URL != d.URL || e.SpaceID != "space_1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Error == "" || e.AttemptCount != 3 || e.LastStatusCode != 500 {
		t.Fatalf("failure details missing: %+v", e)
	}
	if e.FailedAt.IsZero() {
		t.Fatal("FailedAt not set")
	}

	if n, _ := svc.Count(ctx()); n != 1 {
		t.Fatalf("count = %d", n)
	}
}

func TestReplayKeepsIdempotencyKey(t *testing.T) {
	svc, store := newService()
	d := exhausted("space_1", "https://a.example.com")
	_ = svc.PushFailed(ctx(), d, "boom")

	entries, _ := svc.List(ctx(), dlq.ListOpts{})
	replayed, err := svc.Replay(ctx(), entries[0].ID)
	if err != nil {
		t.Fatal(err)
	}

	if replayed.IdempotencyKey != d.IdempotencyKey {
		t.Fatal("replay changed the idempotency key")
	}
	if replayed.State != delivery.StatePending || replayed.AttemptCount != 0 || replayed.MaxAttempts != 3 {
		t.Fatalf("replay not fresh: %+v", replayed)
	}

	got, err := store.GetDelivery(ctx(), replayed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != d.URL || got.Secret != d.Secret {
		t.Fatal("replayed delivery lost its target")
	}

	entry, _ := svc.Get(ctx(), entries[0].ID)
	if entry.ReplayedAt == nil {
		t.Fatal("entry not marked replayed")
	}

	pending, _ := svc.List(ctx(), dlq.ListOpts{Pending: true})
	if len(pending) != 0 {
		t.Fatalf("replayed entry still pending: %d", len(pending))
	}
}

func TestReplayNotFound(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Replay(ctx(), id.NewDLQID())
	if !errors.Is(err, dlq.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReplayBulk(t *testing.T) {
	svc, store := newService()
	from := time.Now().UTC().Add(-time.Minute)

	for _, url := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		_ = svc.PushFailed(ctx(), exhausted("space_1", url), "boom")
	}
	to := time.Now().UTC().Add(time.Minute)

	n, err := svc.ReplayBulk(ctx(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("replayed %d, want 3", n)
	}
	if c, _ := store.CountPending(ctx()); c != 3 {
		t.Fatalf("pending deliveries = %d", c)
	}

	// Already replayed entries are skipped.
	n, _ = svc.ReplayBulk(ctx(), from, to)
	if n != 0 {
		t.Fatalf("second bulk replay = %d", n)
	}
}

func TestListFilters(t *testing.T) {
	svc, _ := newService()
	_ = svc.PushFailed(ctx(), exhausted("space_1", "https://a.example.com"), "boom")
	_ = svc.PushFailed(ctx(), exhausted("space_2", "https://b.example.com"), "boom")

	got, _ := svc.List(ctx(), dlq.ListOpts{SpaceID: "space_2"})
	if len(got) != 1 || got[0].URL != "https://b.example.com" {
		t.Fatalf("space filter: %+v", got)
	}

	got, _ = svc.List(ctx(), dlq.ListOpts{URL: "https://a.example.com"})
	if len(got) != 1 || got[0].SpaceID != "space_1" {
		t.Fatalf("url filter: %+v", got)
	}
}

func TestPurge(t *testing.T) {
	svc, _ := newService()
	_ = svc.PushFailed(ctx(), exhausted("space_1", "https://a.example.com"), "boom")

	n, err := svc.Purge(ctx(), time.Now().UTC().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("purge before push: n=%d err=%v", n, err)
	}

	n, _ = svc.Purge(ctx(), time.Now().UTC().Add(time.Hour))
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if c, _ := svc.Count(ctx()); c != 0 {
		t.Fatalf("count after purge = %d", c)
	}
}

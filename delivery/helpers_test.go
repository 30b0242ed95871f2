package delivery_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
)

const testSecret = "whsec_test_secret_1234567890abcdef1234567890abcdef"

// stubDLQ records pushed deliveries.
type stubDLQ struct {
	mu        sync.Mutex
	pushed    []*delivery.Delivery
	summaries []string
	count     atomic.Int32
}

func (s *stubDLQ) PushFailed(_ context.Context, d *delivery.Delivery, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = append(s.pushed, d)
	s.summaries = append(s.summaries, summary)
	s.count.Add(1)
	return nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testEvent() event.Event {
	published := time.Date(2026, 3, 1, 11, 59, 59, 0, time.UTC)
	e := &entry.Entry{
		ID:           id.NewEntryID(),
		SpaceID:      "space_7",
		CollectionID: "posts",
		Status:       entry.StatusPublished,
		PublishedAt:  &published,
	}
	return event.New(event.KindPublished, e, published.Add(time.Second))
}

func newTestDelivery(url string, next time.Time) *delivery.Delivery {
	evt := testEvent()
	return &delivery.Delivery{
		ID:             id.NewDeliveryID(),
		SpaceID:        evt.SpaceID,
		Collection:     evt.CollectionID,
		EntryID:        evt.EntryID,
		Event:          string(evt.Kind),
		URL:            url,
		Payload:        evt.Payload(),
		Secret:         testSecret,
		IdempotencyKey: evt.IdempotencyKey(),
		State:          delivery.StatePending,
		MaxAttempts:    3,
		NextAttemptAt:  next,
	}
}

package delivery_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/press/dedup"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/store/memory"
)

func setupEngine(t *testing.T, handler http.Handler, dlq delivery.DLQPusher, clock *fakeClock, mutate func(*delivery.EngineConfig)) (*memory.Store, *delivery.Engine, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := memory.New()
	cfg := delivery.EngineConfig{
		Concurrency:    2,
		PollInterval:   20 * time.Millisecond,
		BatchSize:      10,
		RequestTimeout: 2 * time.Second,
		Dedup:          dedup.NewMemory(),
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return store, delivery.NewEngine(store, dlq, cfg, nil), srv
}

func TestEngineDeliversSuccessfully(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq, nil, nil)

	ctx := context.Background()
	del := newTestDelivery(srv.URL, time.Now().UTC())
	if err := store.Enqueue(ctx, del); err != nil {
		t.Fatal(err)
	}

	engine.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		got, err := store.GetDelivery(ctx, del.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == delivery.StateDelivered {
			if got.AttemptCount != 1 || got.CompletedAt == nil {
				t.Fatalf("unexpected delivered row: %+v", got)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for delivery")
		case <-time.After(10 * time.Millisecond):
		}
	}

	engine.Stop(ctx)

	if hits.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", hits.Load())
	}
	if dlq.count.Load() != 0 {
		t.Fatal("expected no DLQ pushes")
	}
}

func TestEngineRetriesWithBackoffThenExhausts(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	var logs bytes.Buffer
	clock := newFakeClock()
	dlq := &stubDLQ{}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	store := memory.New()
	engine := delivery.NewEngine(store, dlq, delivery.EngineConfig{
		Concurrency: 1,
		Dedup:       dedup.NewMemory(),
		Now:         clock.Now,
	}, slog.New(slog.NewJSONHandler(&logs, nil)))

	ctx := context.Background()
	del := newTestDelivery(srv.URL, clock.Now())
	if err := store.Enqueue(ctx, del); err != nil {
		t.Fatal(err)
	}

	// Default schedule: 5s after the first failure, 15s after the second.
	wantGaps := []time.Duration{5 * time.Second, 15 * time.Second}
	for attempt := 1; attempt <= 3; attempt++ {
		n, err := engine.RunOnce(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("attempt %d: expected 1 delivery worked, got %d", attempt, n)
		}

		got, _ := store.GetDelivery(ctx, del.ID)
		if got.AttemptCount != attempt {
			t.Fatalf("attempt count = %d, want %d", got.AttemptCount, attempt)
		}
		if attempt < 3 {
			if got.State != delivery.StatePending {
				t.Fatalf("state after attempt %d = %s", attempt, got.State)
			}
			gap := got.NextAttemptAt.Sub(clock.Now())
			if gap != wantGaps[attempt-1] {
				t.Fatalf("backoff after attempt %d = %s, want %s", attempt, gap, wantGaps[attempt-1])
			}

			// Not due yet.
			if n, _ := engine.RunOnce(ctx); n != 0 {
				t.Fatalf("delivery retried before its backoff elapsed")
			}
			clock.Advance(gap)
		}
	}

	got, _ := store.GetDelivery(ctx, del.ID)
	if got.State != delivery.StateExhausted {
		t.Fatalf("expected exhausted, got %s", got.State)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", hits.Load())
	}

	clock.Advance(time.Hour)
	if n, _ := engine.RunOnce(ctx); n != 0 {
		t.Fatal("exhausted delivery attempted again")
	}

	if dlq.count.Load() != 1 {
		t.Fatalf("expected 1 DLQ push, got %d", dlq.count.Load())
	}
	if !strings.Contains(dlq.summaries[0], "HTTP 500") {
		t.Fatalf("summary missing status: %q", dlq.summaries[0])
	}

	out := logs.String()
	for _, want := range []string{"webhook delivery exhausted", srv.URL, del.IdempotencyKey} {
		if !strings.Contains(out, want) {
			t.Fatalf("terminal log missing %q:\n%s", want, out)
		}
	}
}

func TestEngineRetriesAndSucceeds(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	clock := newFakeClock()
	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq, clock, nil)
	ctx := context.Background()

	del := newTestDelivery(srv.URL, clock.Now())
	_ = store.Enqueue(ctx, del)

	_, _ = engine.RunOnce(ctx)
	clock.Advance(5 * time.Second)
	_, _ = engine.RunOnce(ctx)

	got, _ := store.GetDelivery(ctx, del.ID)
	if got.State != delivery.StateDelivered || got.AttemptCount != 2 {
		t.Fatalf("expected delivered on attempt 2, got %s after %d", got.State, got.AttemptCount)
	}
	if dlq.count.Load() != 0 {
		t.Fatal("unexpected DLQ push")
	}
}

func TestEngineSameIdempotencyKeyDeliveredOnce(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	clock := newFakeClock()
	store, engine, srv := setupEngine(t, handler, nil, clock, nil)
	ctx := context.Background()

	first := newTestDelivery(srv.URL, clock.Now())
	second := newTestDelivery(srv.URL, clock.Now())
	second.Event = first.Event
	second.IdempotencyKey = first.IdempotencyKey

	_ = store.Enqueue(ctx, first)
	_, _ = engine.RunOnce(ctx)
	_ = store.Enqueue(ctx, second)
	_, _ = engine.RunOnce(ctx)

	if hits.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", hits.Load())
	}
	for _, d := range []*delivery.Delivery{first, second} {
		got, _ := store.GetDelivery(ctx, d.ID)
		if got.State != delivery.StateDelivered {
			t.Fatalf("delivery %s state = %s", d.ID, got.State)
		}
	}
	got, _ := store.GetDelivery(ctx, second.ID)
	if got.AttemptCount != 0 {
		t.Fatalf("duplicate should not count an attempt, got %d", got.AttemptCount)
	}
}

func TestEngineSameIdempotencyKeyInOneBatchDeliveredOnce(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	clock := newFakeClock()
	store, engine, srv := setupEngine(t, handler, nil, clock, func(cfg *delivery.EngineConfig) {
		cfg.Concurrency = 4
	})
	ctx := context.Background()

	first := newTestDelivery(srv.URL, clock.Now())
	second := newTestDelivery(srv.URL, clock.Now())
	second.Event = first.Event
	second.IdempotencyKey = first.IdempotencyKey
	if err := store.EnqueueBatch(ctx, []*delivery.Delivery{first, second}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	n, err := engine.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both deliveries in one batch, got %d", n)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", hits.Load())
	}

	var attempts int
	for _, d := range []*delivery.Delivery{first, second} {
		got, _ := store.GetDelivery(ctx, d.ID)
		if got.State != delivery.StateDelivered {
			t.Fatalf("delivery %s state = %s", d.ID, got.State)
		}
		attempts += got.AttemptCount
	}
	if attempts != 1 {
		t.Fatalf("expected one counted attempt across both, got %d", attempts)
	}
}

func TestEngineSameKeyDifferentURLsBothDelivered(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	clock := newFakeClock()
	store, engine, srv := setupEngine(t, handler, nil, clock, nil)
	ctx := context.Background()

	a := newTestDelivery(srv.URL+"/a", clock.Now())
	b := newTestDelivery(srv.URL+"/b", clock.Now())
	b.Event = a.Event
	b.IdempotencyKey = a.IdempotencyKey
	_ = store.EnqueueBatch(ctx, []*delivery.Delivery{a, b})

	_, _ = engine.RunOnce(ctx)
	if hits.Load() != 2 {
		t.Fatalf("expected one request per target, got %d", hits.Load())
	}
}

func TestEngineCircuitOpenPostponesWithoutCountingAttempt(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	clock := newFakeClock()
	breakers := delivery.NewBreakers(delivery.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute}, nil)
	store, engine, srv := setupEngine(t, handler, nil, clock, func(c *delivery.EngineConfig) {
		c.Breakers = breakers
		c.Concurrency = 1
	})
	ctx := context.Background()

	first := newTestDelivery(srv.URL, clock.Now())
	_ = store.Enqueue(ctx, first)
	_, _ = engine.RunOnce(ctx)

	if breakers.State(srv.URL) != "open" {
		t.Fatalf("expected open breaker, got %s", breakers.State(srv.URL))
	}

	second := newTestDelivery(srv.URL, clock.Now())
	_ = store.Enqueue(ctx, second)
	_, _ = engine.RunOnce(ctx)

	got, _ := store.GetDelivery(ctx, second.ID)
	if got.AttemptCount != 0 {
		t.Fatalf("rejected call counted as attempt: %d", got.AttemptCount)
	}
	if got.State != delivery.StatePending {
		t.Fatalf("state = %s", got.State)
	}
	if want := clock.Now().Add(time.Minute); !got.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt = %s, want %s", got.NextAttemptAt, want)
	}
}

func TestEngineGracefulShutdown(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(started) })
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler, nil, nil, nil)
	ctx := context.Background()
	del := newTestDelivery(srv.URL, time.Now().UTC())
	_ = store.Enqueue(ctx, del)

	engine.Start(ctx)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never started")
	}
	engine.Stop(ctx)

	// The in-flight attempt was awaited and its row written back.
	got, _ := store.GetDelivery(ctx, del.ID)
	if got.AttemptCount != 1 {
		t.Fatalf("in-flight delivery was abandoned: attempts = %d", got.AttemptCount)
	}

	// The claim was released.
	if got.State == delivery.StatePending {
		batch, _ := store.Dequeue(ctx, time.Now().Add(time.Hour), 10)
		if len(batch) != 1 {
			t.Fatalf("claim not released: dequeued %d", len(batch))
		}
	}
}

func TestEngineServeReturnsOnCancel(t *testing.T) {
	store := memory.New()
	engine := delivery.NewEngine(store, nil, delivery.EngineConfig{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}

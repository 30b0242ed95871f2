package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/press/dedup"
	"github.com/xraph/press/observability"
	"github.com/xraph/press/ratelimit"
)

// EngineStore is the part of Store the engine needs.
type EngineStore interface {
	Dequeue(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
}

// DLQPusher records exhausted deliveries for operators.
type DLQPusher interface {
	PushFailed(ctx context.Context, d *Delivery, summary string) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	RetrySchedule  []time.Duration

	// DedupTTL is how long a delivered idempotency key is remembered.
	DedupTTL time.Duration

	// SummaryLimit caps failure summaries.
	SummaryLimit int

	// RateLimit caps requests per second to one URL when the delivery
	// carries no limit of its own. 0 is unlimited.
	RateLimit int

	Dedup    dedup.Store
	Breakers *Breakers
	Limiter  *ratelimit.Limiter
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer

	// Now overrides the clock.
	Now func() time.Time
}

// Engine is the delivery worker pool.
type Engine struct {
	store   EngineStore
	sender  *Sender
	retrier *Retrier
	dlq     DLQPusher
	config  EngineConfig
	logger  *slog.Logger

	// inflight serializes attempts that share a dedup key.
	inflight singleflight.Group

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, dlq DLQPusher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.DedupTTL < dedup.DefaultTTL {
		cfg.DedupTTL = dedup.DefaultTTL
	}
	if cfg.SummaryLimit <= 0 {
		cfg.SummaryLimit = DefaultSummaryLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:   store,
		sender:  NewSender(cfg.RequestTimeout),
		retrier: NewRetrier(cfg.RetrySchedule),
		dlq:     dlq,
		config:  cfg,
		logger:  logger,
	}
}

// Start runs the poll loop in the background until Stop or ctx ends.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Serve runs the poll loop in the calling goroutine until ctx ends. It
// satisfies suture.Service.
func (e *Engine) Serve(ctx context.Context) error {
	e.pollLoop(ctx)
	e.wg.Wait()
	return ctx.Err()
}

func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.Dequeue(ctx, e.config.Now(), e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(del *Delivery) {
					defer e.wg.Done()
					defer func() { <-sem }()
					e.process(ctx, del)
				}(d)
			}
		}
	}
}

// RunOnce claims one batch of due deliveries and works it to completion,
// returning the number processed.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	batch, err := e.store.Dequeue(ctx, e.config.Now(), e.config.BatchSize)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.config.Concurrency)
	for _, d := range batch {
		sem <- struct{}{}
		wg.Add(1)
		go func(del *Delivery) {
			defer wg.Done()
			defer func() { <-sem }()
			e.process(ctx, del)
		}(d)
	}
	wg.Wait()

	return len(batch), nil
}

// process runs one attempt of d. Attempts sharing a dedup key run one at a
// time, so a duplicate in the same batch sees the first one's mark.
func (e *Engine) process(ctx context.Context, d *Delivery) {
	key := dedup.Key(d.Event, d.IdempotencyKey, d.URL)

	for ctx.Err() == nil {
		ran := false
		_, _, _ = e.inflight.Do(key, func() (any, error) {
			ran = true
			e.attempt(ctx, d, key)
			return nil, nil
		})
		if ran {
			return
		}
	}
}

// attempt runs the dedup check, send, decision and update for d.
func (e *Engine) attempt(ctx context.Context, d *Delivery, key string) {
	if e.alreadyDelivered(ctx, d, key) {
		now := e.config.Now().UTC()
		d.State = StateDelivered
		d.CompletedAt = &now
		d.UpdatedAt = now
		e.config.Metrics.RecordDuplicate()
		e.logger.DebugContext(ctx, "duplicate delivery skipped",
			"delivery_id", d.ID,
			"url", d.URL,
			"idempotency_key", d.IdempotencyKey,
		)
		e.update(ctx, d)
		return
	}

	if err := e.throttle(ctx, d); err != nil {
		// Shutting down; the claim is released with the row unchanged.
		e.update(ctx, d)
		return
	}

	attempt := d.AttemptCount + 1
	ctx, span := e.config.Tracer.StartDeliverySpan(ctx, d.ID.String(), d.EntryID.String(), d.URL, attempt)

	res, sent := e.send(ctx, d)
	now := e.config.Now().UTC()
	d.UpdatedAt = now

	if !sent {
		d.NextAttemptAt = now.Add(e.config.Breakers.Cooldown())
		e.logger.WarnContext(ctx, "webhook target circuit open, attempt postponed",
			"delivery_id", d.ID,
			"url", d.URL,
			"next_at", d.NextAttemptAt,
		)
		e.config.Tracer.EndDeliverySpan(span, 0, 0, res.Error)
		e.update(ctx, d)
		return
	}

	d.AttemptCount = attempt
	d.LastError = res.Error
	d.LastStatusCode = res.StatusCode
	d.LastResponse = res.Response
	d.LastLatencyMs = res.LatencyMs

	latencySeconds := float64(res.LatencyMs) / 1000.0
	decision := e.retrier.Decide(res, d)

	switch decision {
	case Delivered:
		d.State = StateDelivered
		d.CompletedAt = &now
		if e.config.Dedup != nil {
			if err := e.config.Dedup.Put(ctx, key, e.config.DedupTTL); err != nil {
				e.logger.ErrorContext(ctx, "mark delivered failed",
					"delivery_id", d.ID,
					"idempotency_key", d.IdempotencyKey,
					"error", err,
				)
			}
		}
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID,
			"status", res.StatusCode,
			"latency_ms", res.LatencyMs,
		)

	case Retry:
		d.NextAttemptAt = e.retrier.NextAttempt(now, d.AttemptCount)
		e.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.ID,
			"attempt", d.AttemptCount,
			"next_at", d.NextAttemptAt,
		)

	case Exhausted:
		d.State = StateExhausted
		d.CompletedAt = &now
		summary := Summarize(d, e.config.SummaryLimit)
		if e.dlq != nil {
			if err := e.dlq.PushFailed(ctx, d, summary); err != nil {
				e.logger.ErrorContext(ctx, "push to DLQ failed",
					"delivery_id", d.ID,
					"error", err,
				)
			}
		}
		e.logger.ErrorContext(ctx, "webhook delivery exhausted",
			"delivery_id", d.ID,
			"space_id", d.SpaceID,
			"collection", d.Collection,
			"entry_id", d.EntryID,
			"url", d.URL,
			"idempotency_key", d.IdempotencyKey,
			"attempts", d.AttemptCount,
			"error", summary,
		)
	}

	e.config.Metrics.RecordAttempt(decision.String(), latencySeconds)
	e.config.Tracer.EndDeliverySpan(span, d.LastStatusCode, d.LastLatencyMs, d.LastError)
	e.update(ctx, d)
}

func (e *Engine) alreadyDelivered(ctx context.Context, d *Delivery, key string) bool {
	if e.config.Dedup == nil {
		return false
	}
	has, err := e.config.Dedup.Has(ctx, key)
	if err != nil {
		e.logger.WarnContext(ctx, "dedup lookup failed, delivering anyway",
			"delivery_id", d.ID,
			"idempotency_key", d.IdempotencyKey,
			"error", err,
		)
		return false
	}
	return has
}

func (e *Engine) throttle(ctx context.Context, d *Delivery) error {
	if e.config.Limiter == nil {
		return nil
	}
	limit := d.RateLimit
	if limit <= 0 {
		limit = e.config.RateLimit
	}
	return e.config.Limiter.Wait(ctx, d.URL, limit)
}

func (e *Engine) send(ctx context.Context, d *Delivery) (Result, bool) {
	if e.config.Breakers == nil {
		return e.sender.Send(ctx, d), true
	}
	return e.config.Breakers.Execute(d.URL, func() Result {
		return e.sender.Send(ctx, d)
	})
}

func (e *Engine) update(ctx context.Context, d *Delivery) {
	// Written even after cancellation so the claim is released.
	ctx = context.WithoutCancel(ctx)
	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.logger.ErrorContext(ctx, "update delivery failed",
			"delivery_id", d.ID,
			"error", err,
		)
	}
}

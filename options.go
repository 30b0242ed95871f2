package press

import (
	"log/slog"
	"time"

	"github.com/xraph/press/catalog"
	"github.com/xraph/press/dedup"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/event"
	"github.com/xraph/press/observability"
	"github.com/xraph/press/orchestrator"
	"github.com/xraph/press/realtime"
	"github.com/xraph/press/store"
)

// Option configures a Press instance.
type Option func(*Press) error

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(p *Press) error {
		p.store = s
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Press) error {
		p.logger = logger
		return nil
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override single fields.
func WithConfig(cfg Config) Option {
	return func(p *Press) error {
		p.config = cfg
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(p *Press) error {
		p.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the delivery engine checks for due deliveries.
func WithPollInterval(d time.Duration) Option {
	return func(p *Press) error {
		p.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of deliveries dequeued per poll cycle.
func WithBatchSize(n int) Option {
	return func(p *Press) error {
		p.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Press) error {
		p.config.RequestTimeout = d
		return nil
	}
}

// WithMaxAttempts sets the number of tries per delivery.
func WithMaxAttempts(n int) Option {
	return func(p *Press) error {
		p.config.MaxAttempts = n
		return nil
	}
}

// WithRetrySchedule sets the backoff between attempts.
func WithRetrySchedule(schedule []time.Duration) Option {
	return func(p *Press) error {
		p.config.RetrySchedule = schedule
		return nil
	}
}

// WithShutdownTimeout sets how long Stop waits for in-flight deliveries.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Press) error {
		p.config.ShutdownTimeout = d
		return nil
	}
}

// WithCacheTTL sets the TTL of the catalog's collection cache.
func WithCacheTTL(d time.Duration) Option {
	return func(p *Press) error {
		p.config.CacheTTL = d
		return nil
	}
}

// WithSweepBatch caps the rows read by one sweep.
func WithSweepBatch(n int) Option {
	return func(p *Press) error {
		p.config.SweepBatch = n
		return nil
	}
}

// WithRateLimit sets the default per-URL delivery rate.
func WithRateLimit(perSecond int) Option {
	return func(p *Press) error {
		p.config.RateLimit = perSecond
		return nil
	}
}

// WithWebhooksOnUnpublish also delivers unpublish events to webhook targets.
func WithWebhooksOnUnpublish(on bool) Option {
	return func(p *Press) error {
		p.config.WebhooksOnUnpublish = on
		return nil
	}
}

// WithCollections sets the source the catalog resolves collections from.
// Without it every collection accepts any data.
func WithCollections(src catalog.Source) Option {
	return func(p *Press) error {
		p.collections = src
		return nil
	}
}

// WithCache adds a cache invalidator run on every publish and unpublish.
// It may be given more than once.
func WithCache(inv orchestrator.CacheInvalidator) Option {
	return func(p *Press) error {
		p.caches = append(p.caches, inv)
		return nil
	}
}

// WithRealtime adds a realtime broadcaster. It may be given more than once.
func WithRealtime(b realtime.Broadcaster) Option {
	return func(p *Press) error {
		p.broadcasters = append(p.broadcasters, b)
		return nil
	}
}

// WithHandler registers an extra event handler, run after the built-in ones.
func WithHandler(kind event.Kind, h orchestrator.Handler) Option {
	return func(p *Press) error {
		p.extra = append(p.extra, kindHandler{kind: kind, handler: h})
		return nil
	}
}

// WithDedup sets the store of delivered idempotency keys. The default is
// an in-process map.
func WithDedup(d dedup.Store) Option {
	return func(p *Press) error {
		p.dedup = d
		return nil
	}
}

// WithCircuitBreaker enables per-URL circuit breaking of deliveries.
func WithCircuitBreaker(cfg delivery.BreakerConfig) Option {
	return func(p *Press) error {
		p.breaker = &cfg
		return nil
	}
}

// WithStaticTargets adds webhook targets that receive every event of every
// space, ahead of stored endpoints.
func WithStaticTargets(targets ...endpoint.Target) Option {
	return func(p *Press) error {
		p.targets = append(p.targets, targets...)
		return nil
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Press) error {
		p.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(p *Press) error {
		p.tracer = t
		return nil
	}
}

// WithClock overrides the wall clock used for lifecycle decisions.
func WithClock(now func() time.Time) Option {
	return func(p *Press) error {
		p.now = now
		return nil
	}
}

package press

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/cache"
	"github.com/xraph/press/catalog"
	"github.com/xraph/press/dedup"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/observability"
	"github.com/xraph/press/orchestrator"
	"github.com/xraph/press/publishing"
	"github.com/xraph/press/ratelimit"
	"github.com/xraph/press/realtime"
	"github.com/xraph/press/revision"
	"github.com/xraph/press/store"
	"github.com/xraph/press/tenant"
)

// Press is the root content publishing pipeline.
type Press struct {
	config Config
	store  store.Store
	logger *slog.Logger

	metrics *observability.Metrics
	tracer  *observability.Tracer
	now     func() time.Time

	// Collaborators set through options.
	collections  catalog.Source
	caches       []orchestrator.CacheInvalidator
	broadcasters []realtime.Broadcaster
	extra        []kindHandler
	dedup        dedup.Store
	breaker      *delivery.BreakerConfig
	targets      []endpoint.Target

	catalog      *catalog.Catalog
	audit        *audit.Service
	revisions    *revision.Service
	machine      *publishing.Machine
	orchestrator *orchestrator.Orchestrator
	endpointSvc  *endpoint.Service
	resolver     *endpoint.Resolver
	enqueuer     *delivery.Enqueuer
	dlqSvc       *dlq.Service
	engine       *delivery.Engine
}

type kindHandler struct {
	kind    event.Kind
	handler orchestrator.Handler
}

// New creates a Press with the given options.
func New(opts ...Option) (*Press, error) {
	p := &Press{
		config: DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.store == nil {
		return nil, ErrNoStore
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.wireServices()
	return p, nil
}

// wireServices initializes the internal services after options have been applied.
func (p *Press) wireServices() {
	if p.collections == nil {
		p.collections = catalog.NewStaticSource()
	}
	p.catalog = catalog.New(p.collections, catalog.Config{CacheTTL: p.config.CacheTTL}, p.logger)

	p.audit = audit.NewService(p.store, p.logger)

	p.revisions = revision.NewService(p.store, p.store, revision.Config{
		Audit:     p.audit,
		Validator: p.catalog,
		Metrics:   p.metrics,
		Now:       p.now,
	}, p.logger)

	p.endpointSvc = endpoint.NewService(p.store, p.logger)
	p.resolver = endpoint.NewResolver(p.store, p.targets, p.logger)
	p.enqueuer = delivery.NewEnqueuer(p.store, p.resolver, p.config.MaxAttempts, p.metrics, p.logger).
		WithClock(p.now)

	pipeline := orchestrator.Pipeline{
		Webhooks:            p.enqueuer,
		WebhooksOnUnpublish: p.config.WebhooksOnUnpublish,
	}
	switch len(p.caches) {
	case 0:
	case 1:
		pipeline.Cache = p.caches[0]
	default:
		pipeline.Cache = cacheChain(p.caches)
	}
	switch len(p.broadcasters) {
	case 0:
	case 1:
		pipeline.Realtime = p.broadcasters[0]
	default:
		pipeline.Realtime = realtime.Multi(p.broadcasters)
	}
	p.orchestrator = orchestrator.NewPipeline(pipeline, orchestrator.New(p.metrics, p.logger))
	for _, kh := range p.extra {
		p.orchestrator.On(kh.kind, kh.handler)
	}

	p.machine = publishing.NewMachine(p.store, publishing.Config{
		Dispatcher: p.orchestrator,
		Revisions:  p.revisions,
		Validator:  p.catalog,
		Audit:      p.audit,
		Metrics:    p.metrics,
		Tracer:     p.tracer,
		SweepBatch: p.config.SweepBatch,
		Now:        p.now,
	}, p.logger)

	p.dlqSvc = dlq.NewService(p.store, p.store, p.config.MaxAttempts, p.logger)

	if p.dedup == nil {
		p.dedup = dedup.NewMemory()
	}
	var breakers *delivery.Breakers
	if p.breaker != nil {
		breakers = delivery.NewBreakers(*p.breaker, p.logger)
	}

	p.engine = delivery.NewEngine(p.store, p.dlqSvc, delivery.EngineConfig{
		Concurrency:    p.config.Concurrency,
		PollInterval:   p.config.PollInterval,
		BatchSize:      p.config.BatchSize,
		RequestTimeout: p.config.RequestTimeout,
		RetrySchedule:  p.config.RetrySchedule,
		DedupTTL:       p.config.DedupTTL,
		SummaryLimit:   p.config.SummaryLimit,
		RateLimit:      p.config.RateLimit,
		Dedup:          p.dedup,
		Breakers:       breakers,
		Limiter:        ratelimit.New(),
		Metrics:        p.metrics,
		Tracer:         p.tracer,
		Now:            p.now,
	}, p.logger)
}

// cacheChain adapts several invalidators to one.
func cacheChain(invs []orchestrator.CacheInvalidator) cache.Chain {
	chain := make(cache.Chain, 0, len(invs))
	for _, inv := range invs {
		chain = append(chain, inv)
	}
	return chain
}

// Start begins the delivery engine.
func (p *Press) Start(ctx context.Context) {
	p.engine.Start(ctx)
}

// Stop shuts down the delivery engine, waiting up to ShutdownTimeout for
// in-flight deliveries.
func (p *Press) Stop(ctx context.Context) error {
	if p.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		p.engine.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "shutdown timed out with deliveries in flight")
		return ctx.Err()
	}
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

// CreateEntry persists a new entry. Its initial status follows the input.
func (p *Press) CreateEntry(ctx context.Context, tc tenant.Context, in entry.Input) (*entry.Entry, error) {
	return p.machine.Create(ctx, tc, in)
}

// UpdateEntry applies a patch, snapshotting the previous content first.
func (p *Press) UpdateEntry(ctx context.Context, tc tenant.Context, entryID id.ID, patch entry.Patch) (*entry.Entry, *revision.Revision, error) {
	return p.machine.Update(ctx, tc, entryID, patch)
}

// GetEntry returns an entry of the active space.
func (p *Press) GetEntry(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return p.store.GetEntry(ctx, tc.SpaceID, entryID)
}

// ListEntries returns the entries of the active space, newest first.
func (p *Press) ListEntries(ctx context.Context, tc tenant.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return p.store.ListEntries(ctx, tc.SpaceID, opts)
}

// Publish makes an entry live now.
func (p *Press) Publish(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	return p.machine.Publish(ctx, tc, entryID)
}

// Unpublish takes a published or scheduled entry offline.
func (p *Press) Unpublish(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	return p.machine.Unpublish(ctx, tc, entryID)
}

// Schedule sets an entry to go live at a future time.
func (p *Press) Schedule(ctx context.Context, tc tenant.Context, entryID id.ID, at time.Time) (*entry.Entry, error) {
	return p.machine.Schedule(ctx, tc, entryID, at)
}

// Unschedule moves a scheduled or archived entry back to draft.
func (p *Press) Unschedule(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	return p.machine.Unschedule(ctx, tc, entryID)
}

// PublishScheduled publishes every due scheduled entry across all spaces.
func (p *Press) PublishScheduled(ctx context.Context) (int, error) {
	return p.machine.PublishScheduled(ctx)
}

// UnpublishScheduled archives every expired published entry across all spaces.
func (p *Press) UnpublishScheduled(ctx context.Context) (int, error) {
	return p.machine.UnpublishScheduled(ctx)
}

// ──────────────────────────────────────────────────
// Revisions
// ──────────────────────────────────────────────────

// RestoreRevision replaces an entry's data with a revision snapshot.
func (p *Press) RestoreRevision(ctx context.Context, tc tenant.Context, entryID, revisionID id.ID) (*entry.Entry, error) {
	e, err := p.revisions.Restore(ctx, tc, entryID, revisionID)
	if err != nil {
		return nil, err
	}
	p.invalidate(ctx, e)
	return e, nil
}

// ListRevisions returns the revisions of an entry, newest first.
func (p *Press) ListRevisions(ctx context.Context, tc tenant.Context, entryID id.ID, opts revision.ListOpts) ([]*revision.Revision, error) {
	return p.revisions.List(ctx, tc, entryID, opts)
}

// GetRevision returns one revision of the active space.
func (p *Press) GetRevision(ctx context.Context, tc tenant.Context, revisionID id.ID) (*revision.Revision, error) {
	return p.revisions.Get(ctx, tc, revisionID)
}

// invalidate drops cached views of a restored published entry. A restore
// raises no lifecycle event, so the cache handlers are called directly.
func (p *Press) invalidate(ctx context.Context, e *entry.Entry) {
	if e.Status != entry.StatusPublished {
		return
	}
	for _, inv := range p.caches {
		if err := inv.InvalidateEntry(ctx, e.SpaceID, e.CollectionID, e); err != nil {
			p.logger.ErrorContext(ctx, "cache invalidation after restore failed",
				"space_id", e.SpaceID,
				"collection", e.CollectionID,
				"entry_id", e.ID,
				"error", err,
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Endpoints returns the webhook endpoint service.
func (p *Press) Endpoints() *endpoint.Service {
	return p.endpointSvc
}

// DLQ returns the dead letter queue service.
func (p *Press) DLQ() *dlq.Service {
	return p.dlqSvc
}

// Catalog returns the collection catalog.
func (p *Press) Catalog() *catalog.Catalog {
	return p.catalog
}

// Audit returns the audit service.
func (p *Press) Audit() *audit.Service {
	return p.audit
}

// Orchestrator returns the event orchestrator, for registering handlers
// after construction.
func (p *Press) Orchestrator() *orchestrator.Orchestrator {
	return p.orchestrator
}

// Engine returns the delivery engine, for running it under a supervisor
// instead of Start and Stop.
func (p *Press) Engine() *delivery.Engine {
	return p.engine
}

// Store returns the underlying store.
func (p *Press) Store() store.Store {
	return p.store
}

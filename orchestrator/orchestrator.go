// Package orchestrator fans a lifecycle event out to an explicit, ordered list
// of handlers. Each handler runs in its own failure domain: an error or panic
// is logged with enough context to replay by hand and never reaches the next
// handler or the transition that raised the event.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/press/event"
	"github.com/xraph/press/observability"
)

// Handler is one side effect of a lifecycle event.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt event.Event) error
}

// HandlerFunc adapts a named function to Handler.
func HandlerFunc(name string, fn func(ctx context.Context, evt event.Event) error) Handler {
	return funcHandler{name: name, fn: fn}
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, evt event.Event) error
}

func (h funcHandler) Name() string { return h.name }

func (h funcHandler) Handle(ctx context.Context, evt event.Event) error { return h.fn(ctx, evt) }

// Orchestrator dispatches events to the handlers registered for their kind.
type Orchestrator struct {
	mu       sync.RWMutex
	handlers map[event.Kind][]Handler
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New returns an empty Orchestrator.
func New(metrics *observability.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		handlers: make(map[event.Kind][]Handler),
		metrics:  metrics,
		logger:   logger,
	}
}

// On appends handlers for kind. They run in registration order.
func (o *Orchestrator) On(kind event.Kind, hs ...Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[kind] = append(o.handlers[kind], hs...)
}

// Handlers returns the names of the handlers registered for kind, in order.
func (o *Orchestrator) Handlers(kind event.Kind) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.handlers[kind]))
	for _, h := range o.handlers[kind] {
		names = append(names, h.Name())
	}
	return names
}

// Dispatch runs every handler for the event's kind in order. Failures are
// counted and logged; Dispatch itself cannot fail.
func (o *Orchestrator) Dispatch(ctx context.Context, evt event.Event) {
	o.mu.RLock()
	hs := o.handlers[evt.Kind]
	o.mu.RUnlock()

	for _, h := range hs {
		if err := o.run(ctx, h, evt); err != nil {
			o.metrics.RecordHandlerFailure(h.Name())
			o.logger.ErrorContext(ctx, "event handler failed",
				"event", evt.Kind,
				"space_id", evt.SpaceID,
				"collection", evt.CollectionID,
				"entry_id", evt.EntryID,
				"handler", h.Name(),
				"error", err,
			)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, h Handler, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(ctx, evt)
}

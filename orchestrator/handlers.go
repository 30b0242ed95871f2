package orchestrator

import (
	"context"
	"log/slog"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/realtime"
)

// Handler names, used in logs and the handler_failures metric.
const (
	NameCache    = "cache"
	NameWebhook  = "webhook"
	NameRealtime = "realtime"
)

// CacheInvalidator drops cached views of an entry.
type CacheInvalidator interface {
	InvalidateEntry(ctx context.Context, spaceID, collection string, e *entry.Entry) error
}

// WebhookEnqueuer queues webhook deliveries for an event.
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, evt event.Event) (int, error)
}

// CacheHandler invalidates the entry's cache keys.
func CacheHandler(inv CacheInvalidator) Handler {
	return HandlerFunc(NameCache, func(ctx context.Context, evt event.Event) error {
		e := evt.Entry
		if e == nil {
			e = &entry.Entry{ID: evt.EntryID, SpaceID: evt.SpaceID, CollectionID: evt.CollectionID}
		}
		return inv.InvalidateEntry(ctx, evt.SpaceID, evt.CollectionID, e)
	})
}

// WebhookHandler hands the event to the delivery queue. It returns once the
// deliveries are persisted; the network work happens in the worker pool.
func WebhookHandler(q WebhookEnqueuer) Handler {
	return HandlerFunc(NameWebhook, func(ctx context.Context, evt event.Event) error {
		_, err := q.Enqueue(ctx, evt)
		return err
	})
}

// RealtimeHandler broadcasts a lightweight notification.
func RealtimeHandler(b realtime.Broadcaster) Handler {
	return HandlerFunc(NameRealtime, func(ctx context.Context, evt event.Event) error {
		return b.Publish(ctx, realtime.FromEvent(evt))
	})
}

// Pipeline lists the collaborators of the standard handler chain. Nil
// members are skipped.
type Pipeline struct {
	Cache    CacheInvalidator
	Webhooks WebhookEnqueuer
	Realtime realtime.Broadcaster

	// WebhooksOnUnpublish also enqueues webhook deliveries for unpublish
	// events. By default only publishes are delivered.
	WebhooksOnUnpublish bool
}

// NewPipeline returns an Orchestrator with the standard handlers registered
// for both lifecycle events: cache, then webhook, then realtime.
func NewPipeline(p Pipeline, o *Orchestrator) *Orchestrator {
	if o == nil {
		o = New(nil, slog.Default())
	}

	for _, kind := range []event.Kind{event.KindPublished, event.KindUnpublished} {
		if p.Cache != nil {
			o.On(kind, CacheHandler(p.Cache))
		}
		if p.Webhooks != nil && (kind == event.KindPublished || p.WebhooksOnUnpublish) {
			o.On(kind, WebhookHandler(p.Webhooks))
		}
		if p.Realtime != nil {
			o.On(kind, RealtimeHandler(p.Realtime))
		}
	}
	return o
}

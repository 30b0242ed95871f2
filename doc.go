// Package press is a multi-tenant content publishing pipeline for Go.
//
// Press is a library, not a service. It moves entries through a
// draft, scheduled, published and archived lifecycle. It snapshots their
// content before every update so any change can be rolled back, and it
// raises an event for every transition into or out of published. Each event
// runs an ordered list of handlers:
//   - cache invalidation (in-process LRU, Redis)
//   - webhook delivery with HMAC signatures, idempotency keys, retries and a
//     dead letter queue
//   - realtime notification (websocket hub, NATS, Kafka)
//
// A failing handler is logged and never blocks the others or the transition.
//
// Every tenant-scoped operation takes an explicit tenant.Context. There is no
// ambient tenant.
//
// Quick start:
//
//	p, err := press.New(
//	    press.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p.Start(ctx)
//	defer p.Stop(ctx)
//
//	tc := tenant.New("space_123", "user_42")
//	e, err := p.CreateEntry(ctx, tc, entry.Input{
//	    CollectionID: "posts",
//	    Title:        "Hello",
//	    Data:         map[string]any{"body": "..."},
//	})
//	p.Publish(ctx, tc, e.ID)
//
// Scheduled publishing and expiry are driven by calling PublishScheduled and
// UnpublishScheduled periodically; cmd/pressd does this on a ticker.
package press

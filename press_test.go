package press_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xraph/press"
	"github.com/xraph/press/catalog"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/orchestrator"
	"github.com/xraph/press/realtime"
	"github.com/xraph/press/revision"
	"github.com/xraph/press/signature"
	"github.com/xraph/press/store/memory"
	"github.com/xraph/press/tenant"
)

func ctx() context.Context { return context.Background() }

// receiver records webhook requests.
type receiver struct {
	mu       sync.Mutex
	bodies   [][]byte
	headers  []http.Header
	statuses []int
	status   int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	r.headers = append(r.headers, req.Header.Clone())
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	r.statuses = append(r.statuses, status)
	w.WriteHeader(status)
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

type failingCache struct{ calls int }

func (f *failingCache) InvalidateEntry(context.Context, string, string, *entry.Entry) error {
	f.calls++
	return errors.New("cache backend unavailable")
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (b *recordingBroadcaster) Publish(_ context.Context, msg realtime.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func setup(t *testing.T, opts ...press.Option) (*press.Press, *memory.Store) {
	t.Helper()
	s := memory.New()
	p, err := press.New(append([]press.Option{press.WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return p, s
}

func addEndpoint(t *testing.T, p *press.Press, space, url string) *endpoint.Endpoint {
	t.Helper()
	ep, err := p.Endpoints().Create(ctx(), endpoint.Input{SpaceID: space, URL: url})
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := press.New(); !errors.Is(err, press.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestPublishDeliversSignedWebhook(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	p, s := setup(t)
	ep := addEndpoint(t, p, "space_1", srv.URL)
	tc := tenant.New("space_1", "editor")

	e, err := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", Title: "Launch", Slug: "launch"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != entry.StatusDraft {
		t.Fatalf("status = %s, want draft", e.Status)
	}

	if _, err := p.Publish(ctx(), tc, e.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountPending(ctx()); n != 1 {
		t.Fatalf("pending deliveries = %d, want 1", n)
	}

	if _, err := p.Engine().RunOnce(ctx()); err != nil {
		t.Fatal(err)
	}
	if rcv.count() != 1 {
		t.Fatalf("requests = %d, want 1", rcv.count())
	}

	body := rcv.bodies[0]
	if !signature.Verify(body, ep.Secret, rcv.headers[0].Get(signature.Header)) {
		t.Fatal("signature does not verify")
	}

	var payload event.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Event != string(event.KindPublished) || payload.EntryID != e.ID.String() || payload.SpaceID != "space_1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if rcv.headers[0].Get(delivery.HeaderIdempotencyKey) == "" {
		t.Fatal("missing idempotency key")
	}

	ds, _ := s.ListByEntry(ctx(), "space_1", e.ID, delivery.ListOpts{})
	if len(ds) != 1 || ds[0].State != delivery.StateDelivered {
		t.Fatalf("delivery not marked delivered: %+v", ds)
	}
}

func TestOtherTenantEndpointsNotCalled(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	p, s := setup(t)
	addEndpoint(t, p, "space_2", srv.URL)

	past := time.Now().Add(-time.Minute)
	if _, err := p.CreateEntry(ctx(), tenant.New("space_1", ""), entry.Input{CollectionID: "posts", PublishedAt: &past}); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountPending(ctx()); n != 0 {
		t.Fatalf("pending deliveries = %d, want 0", n)
	}
}

func TestScheduledSweepPublishesAndDelivers(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	now := time.Now().UTC()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	p, _ := setup(t, press.WithClock(clock), press.WithStaticTargets(endpoint.Target{URL: srv.URL}))
	tc := tenant.New("space_1", "")

	at := now.Add(time.Hour)
	e, err := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", PublishedAt: &at})
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != entry.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", e.Status)
	}

	if n, _ := p.PublishScheduled(ctx()); n != 0 {
		t.Fatalf("published %d before due", n)
	}

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	n, err := p.PublishScheduled(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("published %d, want 1", n)
	}

	got, _ := p.GetEntry(ctx(), tc, e.ID)
	if got.Status != entry.StatusPublished {
		t.Fatalf("status = %s", got.Status)
	}

	_, _ = p.Engine().RunOnce(ctx())
	if rcv.count() != 1 {
		t.Fatalf("requests = %d, want 1", rcv.count())
	}

	// A second sweep finds nothing and raises nothing.
	if n, _ := p.PublishScheduled(ctx()); n != 0 {
		t.Fatalf("second sweep moved %d", n)
	}
	_, _ = p.Engine().RunOnce(ctx())
	if rcv.count() != 1 {
		t.Fatal("duplicate webhook after second sweep")
	}
}

func TestHandlerFailureDoesNotBlockWebhookOrRealtime(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	bad := &failingCache{}
	rt := &recordingBroadcaster{}
	p, s := setup(t, press.WithCache(bad), press.WithRealtime(rt))
	addEndpoint(t, p, "space_1", srv.URL)

	past := time.Now().Add(-time.Second)
	e, err := p.CreateEntry(ctx(), tenant.New("space_1", ""), entry.Input{CollectionID: "posts", PublishedAt: &past})
	if err != nil {
		t.Fatalf("transition must not fail because a handler did: %v", err)
	}
	if e.Status != entry.StatusPublished {
		t.Fatalf("status = %s", e.Status)
	}

	if bad.calls != 1 {
		t.Fatalf("cache handler calls = %d", bad.calls)
	}
	if n, _ := s.CountPending(ctx()); n != 1 {
		t.Fatalf("pending deliveries = %d, want 1", n)
	}
	if len(rt.msgs) != 1 || rt.msgs[0].Data.EntryID != e.ID.String() {
		t.Fatalf("realtime messages: %+v", rt.msgs)
	}
}

func TestExtraHandlerRunsAfterBuiltIns(t *testing.T) {
	var seen []event.Kind
	h := orchestrator.HandlerFunc("search", func(_ context.Context, evt event.Event) error {
		seen = append(seen, evt.Kind)
		return nil
	})

	p, _ := setup(t, press.WithHandler(event.KindUnpublished, h))
	tc := tenant.New("space_1", "")

	past := time.Now().Add(-time.Second)
	e, _ := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", PublishedAt: &past})
	if _, err := p.Unpublish(ctx(), tc, e.ID); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 1 || seen[0] != event.KindUnpublished {
		t.Fatalf("seen = %v", seen)
	}
	names := p.Orchestrator().Handlers(event.KindUnpublished)
	if names[len(names)-1] != "search" {
		t.Fatalf("handlers = %v", names)
	}
}

func TestOperationsRequireTenant(t *testing.T) {
	p, _ := setup(t)
	none := tenant.Context{}

	if _, err := p.CreateEntry(ctx(), none, entry.Input{CollectionID: "posts"}); !errors.Is(err, press.ErrNoTenant) {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, err := p.ListEntries(ctx(), none, entry.ListOpts{}); !errors.Is(err, press.ErrNoTenant) {
		t.Fatalf("ListEntries: %v", err)
	}
	if _, err := p.ListRevisions(ctx(), none, id.NewEntryID(), revision.ListOpts{}); !errors.Is(err, press.ErrNoTenant) {
		t.Fatalf("ListRevisions: %v", err)
	}
}

func TestInvalidTransitionIsReExported(t *testing.T) {
	p, _ := setup(t)
	tc := tenant.New("space_1", "")

	e, _ := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts"})
	if _, err := p.Unpublish(ctx(), tc, e.ID); !errors.Is(err, press.ErrInvalidTransition) {
		t.Fatalf("Unpublish draft: %v", err)
	}
	if _, err := p.Schedule(ctx(), tc, e.ID, time.Now().Add(-time.Minute)); !errors.Is(err, press.ErrScheduleInPast) {
		t.Fatalf("Schedule in past: %v", err)
	}
}

func TestSchemaViolationRejectsWrite(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["body"],"properties":{"body":{"type":"string"}}}`)
	src := catalog.NewStaticSource(&catalog.Collection{SpaceID: "space_1", Handle: "posts", Schema: schema})
	p, _ := setup(t, press.WithCollections(src))
	tc := tenant.New("space_1", "")

	_, err := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", Data: map[string]any{"body": 42}})
	if !errors.Is(err, press.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}

	e, err := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", Data: map[string]any{"body": "ok"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.UpdateEntry(ctx(), tc, e.ID, entry.Patch{Data: map[string]any{}}); !errors.Is(err, press.ErrSchemaViolation) {
		t.Fatalf("update: expected schema violation, got %v", err)
	}
}

func TestUpdateAndRestoreRoundTrip(t *testing.T) {
	p, _ := setup(t)
	tc := tenant.New("space_1", "editor")

	e, _ := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", Data: map[string]any{"body": "v1"}})

	_, rev, err := p.UpdateEntry(ctx(), tc, e.ID, entry.Patch{Data: map[string]any{"body": "v2"}})
	if err != nil {
		t.Fatal(err)
	}
	if rev == nil || rev.Diff["body"].From != "v1" || rev.Diff["body"].To != "v2" {
		t.Fatalf("unexpected revision: %+v", rev)
	}

	restored, err := p.RestoreRevision(ctx(), tc, e.ID, rev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Data["body"] != "v1" {
		t.Fatalf("restored body = %v", restored.Data["body"])
	}

	revs, _ := p.ListRevisions(ctx(), tc, e.ID, revision.ListOpts{})
	if len(revs) != 1 {
		t.Fatalf("restore created a revision: %d", len(revs))
	}
	if _, err := p.GetRevision(ctx(), tenant.New("space_2", ""), rev.ID); !errors.Is(err, press.ErrRevisionNotFound) {
		t.Fatalf("cross-tenant revision read: %v", err)
	}
}

func TestRepublishDeliversAgain(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	p, _ := setup(t)
	addEndpoint(t, p, "space_1", srv.URL)
	tc := tenant.New("space_1", "editor")

	e, err := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", Title: "Launch"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(ctx(), tc, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Engine().RunOnce(ctx()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Unpublish(ctx(), tc, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(ctx(), tc, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Engine().RunOnce(ctx()); err != nil {
		t.Fatal(err)
	}

	if rcv.count() != 2 {
		t.Fatalf("requests = %d, want 2", rcv.count())
	}
	first := rcv.headers[0].Get(delivery.HeaderIdempotencyKey)
	second := rcv.headers[1].Get(delivery.HeaderIdempotencyKey)
	if first == second {
		t.Fatalf("republish reused idempotency key %s", first)
	}
}

func TestNestedEditOnReadEntryDoesNotLeakIntoStore(t *testing.T) {
	p, _ := setup(t)
	tc := tenant.New("space_1", "editor")

	e, err := p.CreateEntry(ctx(), tc, entry.Input{
		CollectionID: "posts",
		Data:         map[string]any{"seo": map[string]any{"title": "old"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	read, err := p.GetEntry(ctx(), tc, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	read.Data["seo"].(map[string]any)["title"] = "new"

	_, rev, err := p.UpdateEntry(ctx(), tc, e.ID, entry.Patch{Data: read.Data})
	if err != nil {
		t.Fatal(err)
	}

	seo, _ := rev.Data()["seo"].(map[string]any)
	if seo["title"] != "old" {
		t.Fatalf("snapshot seo.title = %v, want old", seo["title"])
	}
	change, ok := rev.Diff["seo"]
	if !ok {
		t.Fatalf("diff missed nested change: %+v", rev.Diff)
	}
	if to, _ := change.To.(map[string]any); to["title"] != "new" {
		t.Fatalf("diff to = %+v", change.To)
	}

	// Editing the returned revision must not change the stored one.
	seo["title"] = "tampered"
	stored, err := p.GetRevision(ctx(), tc, rev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := stored.Data()["seo"].(map[string]any)["title"]; got != "old" {
		t.Fatalf("stored snapshot seo.title = %v, want old", got)
	}
}

func TestExhaustedDeliveryLandsInDLQ(t *testing.T) {
	rcv := &receiver{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	p, _ := setup(t,
		press.WithMaxAttempts(1),
		press.WithStaticTargets(endpoint.Target{URL: srv.URL}),
	)
	tc := tenant.New("space_1", "")

	past := time.Now().Add(-time.Second)
	if _, err := p.CreateEntry(ctx(), tc, entry.Input{CollectionID: "posts", PublishedAt: &past}); err != nil {
		t.Fatal(err)
	}
	_, _ = p.Engine().RunOnce(ctx())

	if n, _ := p.DLQ().Count(ctx()); n != 1 {
		t.Fatalf("dlq count = %d, want 1", n)
	}
}

func TestStartStop(t *testing.T) {
	p, _ := setup(t, press.WithPollInterval(10*time.Millisecond), press.WithShutdownTimeout(time.Second))
	p.Start(ctx())
	if err := p.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
}

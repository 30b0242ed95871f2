// Package memory provides an in-memory Store implementation for unit testing
// and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/press"
	"github.com/xraph/press/audit"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
	"github.com/xraph/press/revision"
	pressstore "github.com/xraph/press/store"
)

// compile-time interface check.
var _ pressstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	entries    map[string]*entry.Entry       // keyed by ID string
	revisions  map[string]*revision.Revision // keyed by ID string
	endpoints  map[string]*endpoint.Endpoint // keyed by ID string
	deliveries map[string]*delivery.Delivery // keyed by ID string
	locked     map[string]bool               // simulates SKIP LOCKED
	dlqEntries map[string]*dlq.Entry         // keyed by ID string
	audits     []*audit.Record

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entries:    make(map[string]*entry.Entry),
		revisions:  make(map[string]*revision.Revision),
		endpoints:  make(map[string]*endpoint.Endpoint),
		deliveries: make(map[string]*delivery.Delivery),
		locked:     make(map[string]bool),
		dlqEntries: make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return press.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// entry.Store
// ──────────────────────────────────────────────────

// CreateEntry persists a new entry.
func (s *Store) CreateEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.ID.String()] = e.Clone()
	return nil
}

// GetEntry returns a copy of the entry when it belongs to spaceID.
func (s *Store) GetEntry(_ context.Context, spaceID string, entryID id.ID) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryID.String()]
	if !ok || e.SpaceID != spaceID {
		return nil, entry.ErrNotFound
	}
	return e.Clone(), nil
}

// UpdateEntry writes the content fields of an entry.
func (s *Store) UpdateEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[e.ID.String()]
	if !ok || cur.SpaceID != e.SpaceID {
		return entry.ErrNotFound
	}

	next := cur.Clone()
	next.Title = e.Title
	next.Slug = e.Slug
	next.Data = e.Clone().Data
	next.UnpublishAt = e.Clone().UnpublishAt
	next.UpdatedAt = time.Now().UTC()
	s.entries[e.ID.String()] = next
	return nil
}

// TransitionEntry writes the status fields only when the stored status still
// equals from.
func (s *Store) TransitionEntry(_ context.Context, e *entry.Entry, from entry.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[e.ID.String()]
	if !ok || cur.SpaceID != e.SpaceID {
		return entry.ErrNotFound
	}
	if cur.Status != from {
		return entry.ErrConflict
	}

	src := e.Clone()
	next := cur.Clone()
	next.Status = src.Status
	next.PublishedAt = src.PublishedAt
	next.UnpublishAt = src.UnpublishAt
	next.UpdatedAt = time.Now().UTC()
	s.entries[e.ID.String()] = next
	return nil
}

// QueryScheduled returns due scheduled entries across all spaces.
func (s *Store) QueryScheduled(_ context.Context, now time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweepQuery(entry.StatusScheduled, now, limit, func(e *entry.Entry) *time.Time {
		return e.PublishedAt
	}), nil
}

// QueryExpired returns published entries past their unpublish time across
// all spaces.
func (s *Store) QueryExpired(_ context.Context, now time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweepQuery(entry.StatusPublished, now, limit, func(e *entry.Entry) *time.Time {
		return e.UnpublishAt
	}), nil
}

func (s *Store) sweepQuery(status entry.Status, now time.Time, limit int, at func(*entry.Entry) *time.Time) []*entry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if e.Status != status {
			continue
		}
		t := at(e)
		if t == nil || t.After(now) {
			continue
		}
		result = append(result, e.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return at(result[i]).Before(*at(result[j]))
	})

	return applyPagination(result, 0, limit)
}

// ListEntries returns the entries of a space, newest first.
func (s *Store) ListEntries(_ context.Context, spaceID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if e.SpaceID != spaceID {
			continue
		}
		if opts.CollectionID != "" && e.CollectionID != opts.CollectionID {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		result = append(result, e.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// revision.Store
// ──────────────────────────────────────────────────

// CreateRevision persists a revision.
func (s *Store) CreateRevision(_ context.Context, r *revision.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revisions[r.ID.String()] = r.Clone()
	return nil
}

// GetRevision returns a revision of spaceID.
func (s *Store) GetRevision(_ context.Context, spaceID string, revID id.ID) (*revision.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.revisions[revID.String()]
	if !ok || r.SpaceID != spaceID {
		return nil, revision.ErrNotFound
	}
	return r.Clone(), nil
}

// ListRevisions returns the revisions of an entry, newest first.
func (s *Store) ListRevisions(_ context.Context, spaceID string, entryID id.ID, opts revision.ListOpts) ([]*revision.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*revision.Revision, 0)
	for _, r := range s.revisions {
		if r.SpaceID != spaceID || r.EntryID.String() != entryID.String() {
			continue
		}
		result = append(result, r.Clone())
	}

	// IDs are time-ordered, which breaks ties between revisions taken in the
	// same clock tick.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endpoints[ep.ID.String()] = copyEndpoint(ep)
	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, endpoint.ErrNotFound
	}
	return copyEndpoint(ep), nil
}

// UpdateEndpoint modifies an existing endpoint.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[ep.ID.String()]; !ok {
		return endpoint.ErrNotFound
	}
	ep.UpdatedAt = time.Now().UTC()
	s.endpoints[ep.ID.String()] = copyEndpoint(ep)
	return nil
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[epID.String()]; !ok {
		return endpoint.ErrNotFound
	}
	delete(s.endpoints, epID.String())
	return nil
}

// ListEndpoints returns the endpoints owned by spaceID, oldest first.
func (s *Store) ListEndpoints(_ context.Context, spaceID string, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if ep.SpaceID != spaceID {
			continue
		}
		if opts.Enabled != nil && ep.Enabled != *opts.Enabled {
			continue
		}
		result = append(result, copyEndpoint(ep))
	}

	sortEndpoints(result)
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ActiveEndpoints returns enabled endpoints of spaceID plus the global ones.
func (s *Store) ActiveEndpoints(_ context.Context, spaceID string) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*endpoint.Endpoint
	for _, ep := range s.endpoints {
		if !ep.Enabled {
			continue
		}
		if ep.SpaceID != spaceID && !ep.Global() {
			continue
		}
		result = append(result, copyEndpoint(ep))
	}

	sortEndpoints(result)
	return result, nil
}

// SetEnabled enables or disables an endpoint.
func (s *Store) SetEnabled(_ context.Context, epID id.ID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return endpoint.ErrNotFound
	}
	ep.Enabled = enabled
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

func copyEndpoint(ep *endpoint.Endpoint) *endpoint.Endpoint {
	cp := *ep
	cp.Collections = append([]string(nil), ep.Collections...)
	cp.Events = append([]string(nil), ep.Events...)
	return &cp
}

func sortEndpoints(eps []*endpoint.Endpoint) {
	sort.Slice(eps, func(i, j int) bool {
		if !eps[i].CreatedAt.Equal(eps[j].CreatedAt) {
			return eps[i].CreatedAt.Before(eps[j].CreatedAt)
		}
		return eps[i].ID.String() < eps[j].ID.String()
	})
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// EnqueueBatch creates multiple deliveries atomically.
func (s *Store) EnqueueBatch(_ context.Context, ds []*delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range ds {
		s.deliveries[d.ID.String()] = copyDelivery(d)
	}
	return nil
}

// copyDelivery returns a shallow copy of the delivery.
func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	return &cp
}

// Dequeue claims pending deliveries due at or before now. Returns copies so
// callers can mutate without holding a lock.
func (s *Store) Dequeue(_ context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.State != delivery.StatePending {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		if s.locked[d.ID.String()] {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Delivery, 0, len(candidates))
	for _, d := range candidates {
		s.locked[d.ID.String()] = true
		result = append(result, copyDelivery(d))
	}

	return result, nil
}

// UpdateDelivery modifies a delivery and releases its claim.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return delivery.ErrNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID.String()] = copyDelivery(d)
	delete(s.locked, d.ID.String())
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return copyDelivery(d), nil
}

// ListByEntry returns the delivery history of an entry, newest first.
func (s *Store) ListByEntry(_ context.Context, spaceID string, entryID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0)
	for _, d := range s.deliveries {
		if d.SpaceID != spaceID || d.EntryID.String() != entryID.String() {
			continue
		}
		if opts.State != nil && d.State != *opts.State {
			continue
		}
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountPending returns the number of deliveries awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.deliveries {
		if d.State == delivery.StatePending {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push adds an exhausted delivery to the DLQ.
func (s *Store) Push(_ context.Context, e *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.dlqEntries[e.ID.String()] = &cp
	return nil
}

// ListDLQ returns DLQ entries, newest failure first.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if !matchDLQOpts(e, opts) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// MarkReplayed stamps a DLQ entry as replayed.
func (s *Store) MarkReplayed(_ context.Context, dlqID id.ID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return dlq.ErrNotFound
	}
	e.ReplayedAt = &t
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Purge removes entries that failed before the given time.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.dlqEntries {
		if e.FailedAt.Before(before) {
			delete(s.dlqEntries, k)
			n++
		}
	}
	return n, nil
}

// CountDLQ returns the number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dlqEntries)), nil
}

func matchDLQOpts(e *dlq.Entry, opts dlq.ListOpts) bool {
	if opts.SpaceID != "" && e.SpaceID != opts.SpaceID {
		return false
	}
	if opts.URL != "" && e.URL != opts.URL {
		return false
	}
	if opts.From != nil && e.FailedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && e.FailedAt.After(*opts.To) {
		return false
	}
	if opts.Pending && e.ReplayedAt != nil {
		return false
	}
	return true
}

// ──────────────────────────────────────────────────
// audit.Store
// ──────────────────────────────────────────────────

// WriteAudit appends an audit record.
func (s *Store) WriteAudit(_ context.Context, r *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	cp.Diff = entry.CloneData(r.Diff)
	s.audits = append(s.audits, &cp)
	return nil
}

// ListAudit returns the audit trail of a space, newest first.
func (s *Store) ListAudit(_ context.Context, spaceID string, opts audit.ListOpts) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*audit.Record, 0)
	for i := len(s.audits) - 1; i >= 0; i-- {
		r := s.audits[i]
		if r.SpaceID != spaceID {
			continue
		}
		if opts.Resource != "" && r.Resource != opts.Resource {
			continue
		}
		cp := *r
		cp.Diff = entry.CloneData(r.Diff)
		result = append(result, &cp)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset > 0 && offset >= len(items) {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}

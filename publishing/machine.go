// Package publishing owns the entry lifecycle: every status change goes
// through a Machine, which persists it with a conditional write and then
// hands the resulting event to a Dispatcher.
package publishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
	"github.com/xraph/press/observability"
	"github.com/xraph/press/revision"
	"github.com/xraph/press/tenant"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed from
	// the entry's current status. The entry is left untouched.
	ErrInvalidTransition = errors.New("press: invalid status transition")

	// ErrScheduleInPast is returned when scheduling at or before now.
	ErrScheduleInPast = errors.New("press: schedule time must be in the future")
)

// Dispatcher receives the events raised by committed transitions. It must not
// fail the transition, so it has no error result.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt event.Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, evt event.Event)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, evt event.Event) { f(ctx, evt) }

// RevisionRecorder snapshots an entry before its data changes.
type RevisionRecorder interface {
	CreateOnUpdate(ctx context.Context, tc tenant.Context, before *entry.Entry, after map[string]any) (*revision.Revision, error)
}

// DataValidator checks entry data against its collection.
type DataValidator interface {
	ValidateEntry(ctx context.Context, spaceID, collection string, data map[string]any) error
}

// Config wires the collaborators of a Machine. Everything but the store is
// optional.
type Config struct {
	Dispatcher Dispatcher
	Revisions  RevisionRecorder
	Validator  DataValidator
	Audit      audit.Logger
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer

	// SweepBatch caps the rows one sweep reads. 0 reads every due row;
	// leftovers are picked up by the next run.
	SweepBatch int

	Now func() time.Time
}

// Machine applies lifecycle transitions to entries.
type Machine struct {
	store      entry.Store
	dispatcher Dispatcher
	revisions  RevisionRecorder
	validator  DataValidator
	audit      audit.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	batch      int
	now        func() time.Time
	logger     *slog.Logger
}

// NewMachine returns a Machine over store.
func NewMachine(store entry.Store, cfg Config, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = DispatcherFunc(func(context.Context, event.Event) {})
	}
	return &Machine{
		store:      store,
		dispatcher: cfg.Dispatcher,
		revisions:  cfg.Revisions,
		validator:  cfg.Validator,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		batch:      cfg.SweepBatch,
		now:        cfg.Now,
		logger:     logger,
	}
}

// Create persists a new entry. An empty Input.Status is inferred from
// PublishedAt: none is draft, a future time is scheduled and a past time is
// published. An explicit draft is kept as draft whatever PublishedAt says.
func (m *Machine) Create(ctx context.Context, tc tenant.Context, in entry.Input) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if in.CollectionID == "" {
		return nil, &entry.ValidationError{Field: "collection", Message: "is required"}
	}

	now := m.now().UTC()
	status := in.Status
	if status == "" {
		status = inferStatus(in.PublishedAt, now)
	}

	e := &entry.Entry{
		Entity:       entity.At(now),
		ID:           id.NewEntryID(),
		SpaceID:      tc.SpaceID,
		CollectionID: in.CollectionID,
		Title:        in.Title,
		Slug:         in.Slug,
		Status:       status,
		PublishedAt:  utcRef(in.PublishedAt),
		UnpublishAt:  utcRef(in.UnpublishAt),
		Data:         in.Data,
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	switch status {
	case entry.StatusDraft:
	case entry.StatusPublished:
		if e.PublishedAt == nil {
			e.PublishedAt = &now
		}
		if e.PublishedAt.After(now) {
			return nil, &entry.ValidationError{Field: "published_at", Message: "must not be in the future for a published entry"}
		}
		if e.Expired(now) {
			return nil, fmt.Errorf("%w: unpublish time has passed", ErrInvalidTransition)
		}
	case entry.StatusScheduled:
		if e.PublishedAt == nil || !e.PublishedAt.After(now) {
			return nil, ErrScheduleInPast
		}
	default:
		return nil, &entry.ValidationError{Field: "status", Message: fmt.Sprintf("cannot create an entry as %q", status)}
	}

	if err := checkWindow(e.PublishedAt, e.UnpublishAt); err != nil {
		return nil, err
	}
	if err := m.validate(ctx, e); err != nil {
		return nil, err
	}

	if err := m.store.CreateEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("press: create entry: %w", err)
	}

	m.metrics.RecordTransition("new", string(e.Status))
	m.logger.InfoContext(ctx, "entry created",
		"space_id", e.SpaceID,
		"collection", e.CollectionID,
		"entry_id", e.ID,
		"status", e.Status,
	)

	if e.Status == entry.StatusPublished {
		m.dispatcher.Dispatch(ctx, event.New(event.KindPublished, e, now))
	}
	return e, nil
}

// Update applies a content patch. The revision of the prior content is
// written first; if that fails the update is not applied. Status fields other
// than UnpublishAt cannot be changed here.
func (m *Machine) Update(ctx context.Context, tc tenant.Context, entryID id.ID, p entry.Patch) (*entry.Entry, *revision.Revision, error) {
	if err := tc.Validate(); err != nil {
		return nil, nil, err
	}

	before, err := m.store.GetEntry(ctx, tc.SpaceID, entryID)
	if err != nil {
		return nil, nil, err
	}

	after := before.Clone()
	if p.Title != nil {
		after.Title = *p.Title
	}
	if p.Slug != nil {
		after.Slug = *p.Slug
	}
	if p.UnpublishAt != nil {
		after.UnpublishAt = utcRef(p.UnpublishAt)
	}
	if p.Data != nil {
		after.Data = p.Data
	}

	if err := checkWindow(after.PublishedAt, after.UnpublishAt); err != nil {
		return nil, nil, err
	}
	if p.Data != nil {
		if err := m.validate(ctx, after); err != nil {
			return nil, nil, err
		}
	}

	var rev *revision.Revision
	if m.revisions != nil {
		rev, err = m.revisions.CreateOnUpdate(ctx, tc, before, after.Data)
		if err != nil {
			return nil, nil, err
		}
	}

	now := m.now().UTC()
	after.Touch(now)
	if err := m.store.UpdateEntry(ctx, after); err != nil {
		return nil, rev, fmt.Errorf("press: update entry: %w", err)
	}

	m.logger.DebugContext(ctx, "entry updated",
		"space_id", after.SpaceID,
		"entry_id", after.ID,
		"actor_id", tc.Actor(),
	)

	// A published entry whose unpublish time was moved into the past is
	// archived right away rather than waiting for the sweep.
	if after.Status == entry.StatusPublished && after.Expired(now) {
		archived, err := m.transition(ctx, tc, after, entry.StatusArchived, event.KindUnpublished, audit.ActionArchive)
		if err != nil {
			return after, rev, err
		}
		return archived, rev, nil
	}

	return after, rev, nil
}

// Publish moves a draft, scheduled or archived entry to published. The
// publish time becomes now, so every publication gets its own idempotency
// key. Only a scheduled entry that is already due keeps its publish time.
func (m *Machine) Publish(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	e, err := m.store.GetEntry(ctx, tc.SpaceID, entryID)
	if err != nil {
		return nil, err
	}

	switch e.Status {
	case entry.StatusDraft, entry.StatusScheduled, entry.StatusArchived:
	default:
		return nil, invalid(e.Status, entry.StatusPublished)
	}

	now := m.now().UTC()
	next := e.Clone()
	if e.Status != entry.StatusScheduled || !next.Due(now) {
		next.PublishedAt = &now
	}
	if next.Expired(now) {
		return nil, fmt.Errorf("%w: unpublish time has passed", ErrInvalidTransition)
	}

	return m.transition(ctx, tc, next, entry.StatusPublished, event.KindPublished, audit.ActionPublish)
}

// Unpublish archives a published entry and raises an unpublish event. A
// scheduled entry is archived silently since nothing was ever announced.
func (m *Machine) Unpublish(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	e, err := m.store.GetEntry(ctx, tc.SpaceID, entryID)
	if err != nil {
		return nil, err
	}

	switch e.Status {
	case entry.StatusPublished:
		return m.transition(ctx, tc, e.Clone(), entry.StatusArchived, event.KindUnpublished, audit.ActionArchive)
	case entry.StatusScheduled:
		return m.transition(ctx, tc, e.Clone(), entry.StatusArchived, "", audit.ActionArchive)
	default:
		return nil, invalid(e.Status, entry.StatusArchived)
	}
}

// Schedule marks a draft or archived entry for publication at a future time.
func (m *Machine) Schedule(ctx context.Context, tc tenant.Context, entryID id.ID, at time.Time) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	if !at.After(now) {
		return nil, ErrScheduleInPast
	}

	e, err := m.store.GetEntry(ctx, tc.SpaceID, entryID)
	if err != nil {
		return nil, err
	}

	switch e.Status {
	case entry.StatusDraft, entry.StatusArchived:
	default:
		return nil, invalid(e.Status, entry.StatusScheduled)
	}

	next := e.Clone()
	at = at.UTC()
	next.PublishedAt = &at
	if err := checkWindow(next.PublishedAt, next.UnpublishAt); err != nil {
		return nil, err
	}

	return m.transition(ctx, tc, next, entry.StatusScheduled, "", "")
}

// Unschedule reverts a scheduled or archived entry to draft. A pending
// publish time is dropped, and so is an unpublish time that has passed.
func (m *Machine) Unschedule(ctx context.Context, tc tenant.Context, entryID id.ID) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	e, err := m.store.GetEntry(ctx, tc.SpaceID, entryID)
	if err != nil {
		return nil, err
	}

	next := e.Clone()
	switch e.Status {
	case entry.StatusScheduled:
		next.PublishedAt = nil
	case entry.StatusArchived:
	default:
		return nil, invalid(e.Status, entry.StatusDraft)
	}
	if next.Expired(m.now()) {
		next.UnpublishAt = nil
	}

	return m.transition(ctx, tc, next, entry.StatusDraft, "", "")
}

// transition commits next with status to, conditional on the status it was
// read with, then audits and dispatches. An empty kind raises no event and
// an empty action writes no audit record.
func (m *Machine) transition(ctx context.Context, tc tenant.Context, next *entry.Entry, to entry.Status, kind event.Kind, action string) (*entry.Entry, error) {
	from := next.Status
	now := m.now().UTC()

	next.Status = to
	next.Touch(now)
	if err := m.store.TransitionEntry(ctx, next, from); err != nil {
		if errors.Is(err, entry.ErrConflict) || errors.Is(err, entry.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("press: transition entry: %w", err)
	}

	m.metrics.RecordTransition(string(from), string(to))
	m.logger.InfoContext(ctx, "entry transitioned",
		"space_id", next.SpaceID,
		"collection", next.CollectionID,
		"entry_id", next.ID,
		"from", from,
		"to", to,
		"actor_id", tc.Actor(),
	)

	if action != "" && m.audit != nil {
		diff := map[string]any{"from": string(from), "to": string(to)}
		if err := m.audit.Write(ctx, action, "entry:"+next.ID.String(), diff, tc.SpaceID, tc.Actor()); err != nil {
			m.logger.WarnContext(ctx, "transition audit failed",
				"space_id", next.SpaceID,
				"entry_id", next.ID,
				"error", err,
			)
		}
	}

	if kind != "" {
		m.dispatcher.Dispatch(ctx, event.New(kind, next, now))
	}
	return next, nil
}

func (m *Machine) validate(ctx context.Context, e *entry.Entry) error {
	if m.validator == nil {
		return nil
	}
	return m.validator.ValidateEntry(ctx, e.SpaceID, e.CollectionID, e.Data)
}

func inferStatus(publishedAt *time.Time, now time.Time) entry.Status {
	switch {
	case publishedAt == nil:
		return entry.StatusDraft
	case publishedAt.After(now):
		return entry.StatusScheduled
	default:
		return entry.StatusPublished
	}
}

func checkWindow(publishedAt, unpublishAt *time.Time) error {
	if publishedAt != nil && unpublishAt != nil && !unpublishAt.After(*publishedAt) {
		return fmt.Errorf("%w: unpublish time must be after publish time", ErrInvalidTransition)
	}
	return nil
}

func invalid(from, to entry.Status) error {
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}

func utcRef(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

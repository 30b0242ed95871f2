package revision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
	"github.com/xraph/press/observability"
	"github.com/xraph/press/tenant"
)

// DataValidator checks entry data before it is written.
type DataValidator interface {
	ValidateEntry(ctx context.Context, spaceID, collection string, data map[string]any) error
}

// Config wires the optional collaborators of a Service.
type Config struct {
	Audit     audit.Logger
	Validator DataValidator
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// Service captures revisions on update and restores entries from them.
type Service struct {
	store     Store
	entries   entry.Store
	audit     audit.Logger
	validator DataValidator
	metrics   *observability.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// NewService returns a revision Service.
func NewService(store Store, entries entry.Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewService(nil, logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     store,
		entries:   entries,
		audit:     cfg.Audit,
		validator: cfg.Validator,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		logger:    logger,
	}
}

// CreateOnUpdate snapshots before and records the shallow diff towards
// after. It must run before the new data is committed.
func (s *Service) CreateOnUpdate(ctx context.Context, tc tenant.Context, before *entry.Entry, after map[string]any) (*Revision, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if before.SpaceID != tc.SpaceID {
		return nil, entry.ErrNotFound
	}

	r := &Revision{
		ID:        id.NewRevisionID(),
		SpaceID:   before.SpaceID,
		EntryID:   before.ID,
		Snapshot:  before.Snapshot(),
		Diff:      ShallowDiff(before.Data, after),
		CreatedBy: tc.Actor(),
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.CreateRevision(ctx, r); err != nil {
		return nil, fmt.Errorf("press: create revision: %w", err)
	}

	s.metrics.RecordRevision()
	s.logger.DebugContext(ctx, "revision created",
		"space_id", r.SpaceID,
		"entry_id", r.EntryID,
		"revision_id", r.ID,
		"changed_keys", len(r.Diff),
	)

	return r, nil
}

// Restore replaces the entry's data with the revision snapshot. It records
// an audit entry but does not create a new revision, and leaves every
// revision row untouched.
func (s *Service) Restore(ctx context.Context, tc tenant.Context, entryID, revID id.ID) (*entry.Entry, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	e, err := s.entries.GetEntry(ctx, tc.SpaceID, entryID)
	if err != nil {
		return nil, err
	}

	r, err := s.store.GetRevision(ctx, tc.SpaceID, revID)
	if err != nil {
		return nil, err
	}
	if r.EntryID.String() != e.ID.String() {
		return nil, ErrEntryMismatch
	}

	restored := entry.CloneData(r.Data())
	if s.validator != nil {
		if err := s.validator.ValidateEntry(ctx, e.SpaceID, e.CollectionID, restored); err != nil {
			return nil, err
		}
	}

	previous := e.Data
	e.Data = restored
	e.Touch(s.now())

	if err := s.entries.UpdateEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("press: restore entry: %w", err)
	}

	s.metrics.RecordRestore()

	diff := map[string]any{
		"before":      previous,
		"after":       restored,
		"revision_id": r.ID.String(),
	}
	if err := s.audit.Write(ctx, audit.ActionRestore, "entry:"+e.ID.String(), diff, tc.SpaceID, tc.Actor()); err != nil {
		s.logger.ErrorContext(ctx, "restore audit failed",
			"space_id", tc.SpaceID,
			"entry_id", e.ID,
			"revision_id", r.ID,
			"error", err,
		)
	}

	return e, nil
}

// List returns the revisions of an entry, newest first.
func (s *Service) List(ctx context.Context, tc tenant.Context, entryID id.ID, opts ListOpts) ([]*Revision, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListRevisions(ctx, tc.SpaceID, entryID, opts)
}

// Get returns one revision of the active space.
func (s *Service) Get(ctx context.Context, tc tenant.Context, revID id.ID) (*Revision, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.store.GetRevision(ctx, tc.SpaceID, revID)
}

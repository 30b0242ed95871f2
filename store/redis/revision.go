package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/id"
	"github.com/xraph/press/revision"
)

// revisionModel is the JSON representation stored in Redis.
type revisionModel struct {
	ID        string         `json:"id"`
	SpaceID   string         `json:"space_id"`
	EntryID   string         `json:"entry_id"`
	Snapshot  map[string]any `json:"snapshot"`
	Diff      revision.Diff  `json:"diff"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

func toRevisionModel(r *revision.Revision) *revisionModel {
	return &revisionModel{
		ID:        r.ID.String(),
		SpaceID:   r.SpaceID,
		EntryID:   r.EntryID.String(),
		Snapshot:  r.Snapshot,
		Diff:      r.Diff,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}

func fromRevisionModel(m *revisionModel) (*revision.Revision, error) {
	revID, err := id.ParseRevisionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse revision ID %q: %w", m.ID, err)
	}
	entryID, err := id.ParseEntryID(m.EntryID)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.EntryID, err)
	}
	return &revision.Revision{
		ID:        revID,
		SpaceID:   m.SpaceID,
		EntryID:   entryID,
		Snapshot:  m.Snapshot,
		Diff:      m.Diff,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}, nil
}

// auditModel is the JSON representation stored in Redis.
type auditModel struct {
	ID        string         `json:"id"`
	SpaceID   string         `json:"space_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Diff      map[string]any `json:"diff,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func fromAuditModel(m *auditModel) (*audit.Record, error) {
	audID, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit ID %q: %w", m.ID, err)
	}
	return &audit.Record{
		ID:        audID,
		SpaceID:   m.SpaceID,
		ActorID:   m.ActorID,
		Action:    m.Action,
		Resource:  m.Resource,
		Diff:      m.Diff,
		CreatedAt: m.CreatedAt,
	}, nil
}

// CreateRevision persists a revision.
func (s *Store) CreateRevision(ctx context.Context, r *revision.Revision) error {
	m := toRevisionModel(r)
	if err := s.setEntity(ctx, entityKey(prefixRevision, m.ID), m); err != nil {
		return fmt.Errorf("press/redis: create revision: %w", err)
	}

	err := s.rdb.ZAdd(ctx, scopedKey(zRevisionEntry, m.SpaceID, m.EntryID),
		goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID}).Err()
	if err != nil {
		return fmt.Errorf("press/redis: create revision index: %w", err)
	}
	return nil
}

// GetRevision returns a revision of spaceID.
func (s *Store) GetRevision(ctx context.Context, spaceID string, revID id.ID) (*revision.Revision, error) {
	var m revisionModel
	if err := s.getEntity(ctx, entityKey(prefixRevision, revID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, revision.ErrNotFound
		}
		return nil, fmt.Errorf("press/redis: get revision: %w", err)
	}
	if m.SpaceID != spaceID {
		return nil, revision.ErrNotFound
	}
	return fromRevisionModel(&m)
}

// ListRevisions returns the revisions of an entry, newest first. Members
// with equal scores come back in reverse lexical order, which keeps ties
// ordered by ID descending.
func (s *Store) ListRevisions(ctx context.Context, spaceID string, entryID id.ID, opts revision.ListOpts) ([]*revision.Revision, error) {
	ids, err := s.rdb.ZRevRange(ctx, scopedKey(zRevisionEntry, spaceID, entryID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("press/redis: list revisions: %w", err)
	}

	models, err := loadAll[revisionModel](ctx, s, prefixRevision, applyIDPagination(ids, opts.Offset, opts.Limit))
	if err != nil {
		return nil, fmt.Errorf("press/redis: list revisions: %w", err)
	}

	result := make([]*revision.Revision, 0, len(models))
	for _, m := range models {
		r, err := fromRevisionModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// WriteAudit appends an audit record.
func (s *Store) WriteAudit(ctx context.Context, r *audit.Record) error {
	m := &auditModel{
		ID:        r.ID.String(),
		SpaceID:   r.SpaceID,
		ActorID:   r.ActorID,
		Action:    r.Action,
		Resource:  r.Resource,
		Diff:      r.Diff,
		CreatedAt: r.CreatedAt,
	}
	if err := s.setEntity(ctx, entityKey(prefixAudit, m.ID), m); err != nil {
		return fmt.Errorf("press/redis: write audit: %w", err)
	}

	err := s.rdb.ZAdd(ctx, zAuditSpace+m.SpaceID,
		goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID}).Err()
	if err != nil {
		return fmt.Errorf("press/redis: write audit index: %w", err)
	}
	return nil
}

// ListAudit returns the audit trail of a space, newest first.
func (s *Store) ListAudit(ctx context.Context, spaceID string, opts audit.ListOpts) ([]*audit.Record, error) {
	ids, err := s.rdb.ZRevRange(ctx, zAuditSpace+spaceID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("press/redis: list audit: %w", err)
	}

	models, err := loadAll[auditModel](ctx, s, prefixAudit, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: list audit: %w", err)
	}

	result := make([]*audit.Record, 0, len(models))
	for _, m := range models {
		if opts.Resource != "" && m.Resource != opts.Resource {
			continue
		}
		r, err := fromAuditModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

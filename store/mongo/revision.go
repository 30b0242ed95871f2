package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/id"
	"github.com/xraph/press/revision"
)

// CreateRevision persists a revision.
func (s *Store) CreateRevision(ctx context.Context, r *revision.Revision) error {
	_, err := s.mdb.NewInsert(toRevisionModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: create revision: %w", err)
	}

	return nil
}

// GetRevision returns a revision of spaceID.
func (s *Store) GetRevision(ctx context.Context, spaceID string, revID id.ID) (*revision.Revision, error) {
	var m revisionModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": revID.String(), "space_id": spaceID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, revision.ErrNotFound
		}

		return nil, fmt.Errorf("press/mongo: get revision: %w", err)
	}

	return fromRevisionModel(&m)
}

// ListRevisions returns the revisions of an entry, newest first.
func (s *Store) ListRevisions(ctx context.Context, spaceID string, entryID id.ID, opts revision.ListOpts) ([]*revision.Revision, error) {
	var models []revisionModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"space_id": spaceID, "entry_id": entryID.String()}).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/mongo: list revisions: %w", err)
	}

	result := make([]*revision.Revision, 0, len(models))

	for i := range models {
		r, err := fromRevisionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}

// WriteAudit appends an audit record.
func (s *Store) WriteAudit(ctx context.Context, r *audit.Record) error {
	_, err := s.mdb.NewInsert(toAuditModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: write audit: %w", err)
	}

	return nil
}

// ListAudit returns the audit trail of a space, newest first.
func (s *Store) ListAudit(ctx context.Context, spaceID string, opts audit.ListOpts) ([]*audit.Record, error) {
	var models []auditModel

	filter := bson.M{"space_id": spaceID}
	if opts.Resource != "" {
		filter["resource"] = opts.Resource
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/mongo: list audit: %w", err)
	}

	result := make([]*audit.Record, 0, len(models))

	for i := range models {
		r, err := fromAuditModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}

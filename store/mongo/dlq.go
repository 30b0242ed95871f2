package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/press/dlq"
	"github.com/xraph/press/id"
)

// Push adds an exhausted delivery to the DLQ.
func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	m := toDLQEntryModel(e)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: push dlq: %w", err)
	}

	return nil
}

// ListDLQ returns DLQ entries, optionally filtered.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel

	filter := bson.M{}
	if opts.SpaceID != "" {
		filter["space_id"] = opts.SpaceID
	}

	if opts.URL != "" {
		filter["url"] = opts.URL
	}

	if opts.Pending {
		filter["replayed_at"] = nil
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["failed_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "failed_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/mongo: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(models))

	for i := range models {
		e, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, e)
	}

	return result, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": dlqID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dlq.ErrNotFound
		}

		return nil, fmt.Errorf("press/mongo: get dlq: %w", err)
	}

	return fromDLQEntryModel(&m)
}

// MarkReplayed stamps a DLQ entry as replayed at t.
func (s *Store) MarkReplayed(ctx context.Context, dlqID id.ID, t time.Time) error {
	res, err := s.mdb.NewUpdate((*dlqEntryModel)(nil)).
		Filter(bson.M{"_id": dlqID.String()}).
		Set("replayed_at", t).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: mark replayed: %w", err)
	}

	if res.MatchedCount() == 0 {
		return dlq.ErrNotFound
	}

	return nil
}

// Purge deletes DLQ entries that failed before the given time.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*dlqEntryModel)(nil)).
		Many().
		Filter(bson.M{"failed_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("press/mongo: purge: %w", err)
	}

	return res.DeletedCount(), nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*dlqEntryModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("press/mongo: count dlq: %w", err)
	}

	return count, nil
}

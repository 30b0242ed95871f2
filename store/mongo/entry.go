package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
)

// CreateEntry persists a new entry.
func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	_, err := s.mdb.NewInsert(toEntryModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: create entry: %w", err)
	}

	return nil
}

// GetEntry returns an entry of spaceID.
func (s *Store) GetEntry(ctx context.Context, spaceID string, entryID id.ID) (*entry.Entry, error) {
	var m entryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String(), "space_id": spaceID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entry.ErrNotFound
		}

		return nil, fmt.Errorf("press/mongo: get entry: %w", err)
	}

	return fromEntryModel(&m)
}

// UpdateEntry writes the content fields of an entry.
func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	res, err := s.mdb.NewUpdate((*entryModel)(nil)).
		Filter(bson.M{"_id": e.ID.String(), "space_id": e.SpaceID}).
		Set("title", e.Title).
		Set("slug", e.Slug).
		Set("data", e.Data).
		Set("unpublish_at", e.UnpublishAt).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: update entry: %w", err)
	}

	if res.MatchedCount() == 0 {
		return entry.ErrNotFound
	}

	return nil
}

// TransitionEntry writes the status fields when the stored status is still
// from. The status predicate makes the update a single-document
// compare-and-set.
func (s *Store) TransitionEntry(ctx context.Context, e *entry.Entry, from entry.Status) error {
	res, err := s.mdb.NewUpdate((*entryModel)(nil)).
		Filter(bson.M{
			"_id":      e.ID.String(),
			"space_id": e.SpaceID,
			"status":   string(from),
		}).
		Set("status", string(e.Status)).
		Set("published_at", e.PublishedAt).
		Set("unpublish_at", e.UnpublishAt).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: transition entry: %w", err)
	}

	if res.MatchedCount() > 0 {
		return nil
	}

	count, err := s.mdb.NewFind((*entryModel)(nil)).
		Filter(bson.M{"_id": e.ID.String(), "space_id": e.SpaceID}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: transition entry: %w", err)
	}

	if count == 0 {
		return entry.ErrNotFound
	}

	return entry.ErrConflict
}

// QueryScheduled returns due scheduled entries across all spaces.
func (s *Store) QueryScheduled(ctx context.Context, t time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweep(ctx, "published_at", entry.StatusScheduled, t, limit)
}

// QueryExpired returns expired published entries across all spaces.
func (s *Store) QueryExpired(ctx context.Context, t time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweep(ctx, "unpublish_at", entry.StatusPublished, t, limit)
}

func (s *Store) sweep(ctx context.Context, field string, status entry.Status, t time.Time, limit int) ([]*entry.Entry, error) {
	var models []entryModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status": string(status),
			field:    bson.M{"$ne": nil, "$lte": t},
		}).
		Sort(bson.D{{Key: field, Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/mongo: sweep %s: %w", status, err)
	}

	return entriesFromModels(models)
}

// ListEntries returns the entries of a space, newest first.
func (s *Store) ListEntries(ctx context.Context, spaceID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel

	filter := bson.M{"space_id": spaceID}
	if opts.CollectionID != "" {
		filter["collection"] = opts.CollectionID
	}

	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/mongo: list entries: %w", err)
	}

	return entriesFromModels(models)
}

func entriesFromModels(models []entryModel) ([]*entry.Entry, error) {
	result := make([]*entry.Entry, 0, len(models))

	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, e)
	}

	return result, nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/id"
)

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: enqueue: %w", err)
	}

	return nil
}

// EnqueueBatch creates multiple deliveries atomically (fan-out).
func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	models := make([]deliveryModel, len(ds))
	for i, d := range ds {
		models[i] = *toDeliveryModel(d)
	}

	_, err := s.mdb.NewInsert(&models).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: enqueue batch: %w", err)
	}

	return nil
}

// Dequeue claims due deliveries one document at a time. Each
// FindOneAndUpdate sets a lease, so concurrent pollers never claim the same
// document.
func (s *Store) Dequeue(ctx context.Context, t time.Time, limit int) ([]*delivery.Delivery, error) {
	result := make([]*delivery.Delivery, 0, limit)
	col := s.mdb.Collection(colDeliveries)

	for range limit {
		filter := bson.M{
			"state":           string(delivery.StatePending),
			"next_attempt_at": bson.M{"$lte": t},
			"$or": bson.A{
				bson.M{"locked_until": nil},
				bson.M{"locked_until": bson.M{"$lt": t}},
			},
		}

		update := bson.M{
			"$set": bson.M{
				"locked_until": t.Add(ClaimLease),
			},
		}

		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})

		var m deliveryModel

		err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if errors.Is(err, mongod.ErrNoDocuments) {
				break
			}

			return nil, fmt.Errorf("press/mongo: dequeue: %w", err)
		}

		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

// UpdateDelivery writes the attempt outcome and releases the claim.
func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()
	m.LockedUntil = nil

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/mongo: update delivery: %w", err)
	}

	if res.MatchedCount() == 0 {
		return delivery.ErrNotFound
	}

	return nil
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": delID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, delivery.ErrNotFound
		}

		return nil, fmt.Errorf("press/mongo: get delivery: %w", err)
	}

	return fromDeliveryModel(&m)
}

// ListByEntry returns the delivery history of an entry, newest first.
func (s *Store) ListByEntry(ctx context.Context, spaceID string, entryID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel

	filter := bson.M{"space_id": spaceID, "entry_id": entryID.String()}
	if opts.State != nil {
		filter["state"] = string(*opts.State)
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
		return nil, fmt.Errorf("press/mongo: list by entry: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(models))

	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

// CountPending returns the number of deliveries awaiting attempt.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*deliveryModel)(nil)).
		Filter(bson.M{"state": string(delivery.StatePending)}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("press/mongo: count pending: %w", err)
	}

	return count, nil
}

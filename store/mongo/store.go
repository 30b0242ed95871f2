package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/press/store"
)

// Collection name constants.
const (
	colEntries    = "press_entries"
	colRevisions  = "press_revisions"
	colEndpoints  = "press_endpoints"
	colDeliveries = "press_deliveries"
	colDLQ        = "press_dlq"
	colAudit      = "press_audit"
)

// ClaimLease is how long a dequeued delivery stays invisible to other pollers.
const ClaimLease = 5 * time.Minute

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all press collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("press/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all press collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "published_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "unpublish_at", Value: 1}}},
		},
		colRevisions: {
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "entry_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colEndpoints: {
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "enabled", Value: 1}}},
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colDeliveries: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "entry_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colDLQ: {
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "failed_at", Value: -1}}},
			{Keys: bson.D{{Key: "failed_at", Value: 1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "resource", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

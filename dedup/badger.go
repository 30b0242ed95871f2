package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var _ Store = (*Badger)(nil)

// Badger stores delivered markers in an embedded Badger database using
// native entry TTLs.
type Badger struct {
	db *badger.DB
}

// NewBadger returns a Store on an open Badger database. The caller owns db.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// OpenBadger opens a Badger database at dir for dedup use.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("press/dedup: open badger: %w", err)
	}
	return db, nil
}

// Has implements Store.
func (b *Badger) Has(_ context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("press/dedup: badger get: %w", err)
	}
	return true, nil
}

// Put implements Store.
func (b *Badger) Put(_ context.Context, key string, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), []byte{1}).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("press/dedup: badger set: %w", err)
	}
	return nil
}

// Package event defines the domain events raised by publishing transitions
// and the JSON body sent to webhook targets.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
)

// Kind names a lifecycle event.
type Kind string

const (
	KindPublished   Kind = "entry.published"
	KindUnpublished Kind = "entry.unpublished"
)

// Event is raised once per committed transition into or out of published.
type Event struct {
	Kind         Kind
	SpaceID      string
	CollectionID string
	EntryID      id.ID
	PublishedAt  time.Time
	OccurredAt   time.Time

	// Entry is the entry as committed by the transition.
	Entry *entry.Entry
}

// New builds the event of kind for a committed entry.
func New(kind Kind, e *entry.Entry, at time.Time) Event {
	evt := Event{
		Kind:         kind,
		SpaceID:      e.SpaceID,
		CollectionID: e.CollectionID,
		EntryID:      e.ID,
		OccurredAt:   at.UTC(),
		Entry:        e,
	}
	if e.PublishedAt != nil {
		evt.PublishedAt = e.PublishedAt.UTC()
	}
	return evt
}

// IdempotencyKey is derived only from the event kind, the entry and its
// publish time, so enqueuing the same logical event twice yields the same key.
func (e Event) IdempotencyKey() string {
	h := sha256.New()
	h.Write([]byte(e.Kind))
	h.Write([]byte{'|'})
	h.Write([]byte(e.EntryID.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(e.PublishedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// Payload returns the webhook body for the event.
func (e Event) Payload() Payload {
	return Payload{
		Event:       string(e.Kind),
		SpaceID:     e.SpaceID,
		Collection:  e.CollectionID,
		EntryID:     e.EntryID.String(),
		PublishedAt: e.PublishedAt,
	}
}

// Payload is the JSON body of a webhook delivery.
type Payload struct {
	Event       string    `json:"event"`
	SpaceID     string    `json:"space_id"`
	Collection  string    `json:"collection"`
	EntryID     string    `json:"entry_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Package realtime broadcasts lightweight lifecycle notifications to connected
// clients. Delivery is best effort: a slow or absent subscriber never holds up
// publishing.
package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/press/event"
)

// Message is the realtime notification of a lifecycle event.
type Message struct {
	Type      string    `json:"type"`
	SpaceID   string    `json:"space_id"`
	Data      Data      `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Data is the body of a Message.
type Data struct {
	Collection  string    `json:"collection"`
	EntryID     string    `json:"entry_id"`
	Title       string    `json:"title,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// FromEvent builds the message for evt.
func FromEvent(evt event.Event) Message {
	msg := Message{
		Type:    string(evt.Kind),
		SpaceID: evt.SpaceID,
		Data: Data{
			Collection:  evt.CollectionID,
			EntryID:     evt.EntryID.String(),
			PublishedAt: evt.PublishedAt,
		},
		Timestamp: evt.OccurredAt,
	}
	if evt.Entry != nil {
		msg.Data.Title = evt.Entry.Title
		msg.Data.Slug = evt.Entry.Slug
	}
	return msg
}

// Broadcaster publishes messages to subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, msg Message) error
}

// Multi publishes to several broadcasters and joins their errors.
type Multi []Broadcaster

// Publish implements Broadcaster.
func (m Multi) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, b := range m {
		if err := b.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

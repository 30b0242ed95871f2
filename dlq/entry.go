// Package dlq keeps webhook deliveries that consumed every attempt, so
// terminal failures stay visible and can be replayed by an operator.
package dlq

import (
	"errors"
	"time"

	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// ErrNotFound is returned when a DLQ entry does not exist.
var ErrNotFound = errors.New("press: dlq entry not found")

// Entry is an exhausted delivery.
type Entry struct {
	entity.Entity

	ID         id.ID  `json:"id"`
	DeliveryID id.ID  `json:"delivery_id"`
	SpaceID    string `json:"space_id"`
	Collection string `json:"collection"`
	EntryID    id.ID  `json:"entry_id"`
	EndpointID id.ID  `json:"endpoint_id"`

	Event          string        `json:"event"`
	URL            string        `json:"url"`
	Payload        event.Payload `json:"payload"`
	Secret         string        `json:"-"`
	IdempotencyKey string        `json:"idempotency_key"`

	// Error is the truncated failure summary.
	Error          string `json:"error"`
	AttemptCount   int    `json:"attempt_count"`
	LastStatusCode int    `json:"last_status_code,omitempty"`

	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset  int
	Limit   int
	SpaceID string
	URL     string
	From    *time.Time
	To      *time.Time

	// Pending excludes entries that were already replayed.
	Pending bool
}

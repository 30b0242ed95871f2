// Package delivery sends publish notifications to webhook targets with
// at-least-once semantics. Each target of an event gets its own Delivery
// row, worked by a poll-loop worker pool that tracks attempts and retry
// times itself.
package delivery

import (
	"errors"
	"time"

	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// ErrNotFound is returned when a delivery does not exist.
var ErrNotFound = errors.New("press: delivery not found")

// State is the lifecycle state of a delivery.
type State string

const (
	// StatePending is awaiting its next attempt.
	StatePending State = "pending"

	// StateDelivered reached its target, or its idempotency key had already
	// been delivered.
	StateDelivered State = "delivered"

	// StateExhausted consumed every attempt. It is logged and moved to the
	// dead letter queue.
	StateExhausted State = "exhausted"
)

// DefaultMaxAttempts is the number of tries per delivery.
const DefaultMaxAttempts = 3

// DefaultRetrySchedule is the backoff between attempts. The last value is
// reused once the schedule runs out.
var DefaultRetrySchedule = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

// Delivery is one unit of outbound webhook work.
type Delivery struct {
	entity.Entity

	ID         id.ID  `json:"id"`
	SpaceID    string `json:"space_id"`
	Collection string `json:"collection"`
	EntryID    id.ID  `json:"entry_id"`

	// EndpointID is Nil for targets configured statically.
	EndpointID id.ID `json:"endpoint_id"`

	Event   string        `json:"event"`
	URL     string        `json:"url"`
	Payload event.Payload `json:"payload"`
	Secret  string        `json:"-"`

	// RateLimit caps requests per second to URL. 0 defers to the engine.
	RateLimit int `json:"rate_limit,omitempty"`

	// IdempotencyKey is shared by every target of one logical event.
	IdempotencyKey string `json:"idempotency_key"`

	State         State     `json:"state"`
	AttemptCount  int       `json:"attempt_count"`
	MaxAttempts   int       `json:"max_attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`

	LastError      string `json:"last_error,omitempty"`
	LastStatusCode int    `json:"last_status_code,omitempty"`

	// LastResponse is the response body of the latest attempt, capped at 1KB.
	LastResponse  string `json:"last_response,omitempty"`
	LastLatencyMs int    `json:"last_latency_ms,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}

// Package endpoint manages the webhook targets publish events are delivered
// to. A target is global (no space), tenant-wide, or narrowed to some
// collections of a tenant.
package endpoint

import (
	"errors"

	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// ErrNotFound is returned when an endpoint does not exist.
var ErrNotFound = errors.New("press: endpoint not found")

// Endpoint is a registered webhook target.
type Endpoint struct {
	entity.Entity

	ID id.ID `json:"id"`

	// SpaceID owns the endpoint. Empty means global: every space delivers to it.
	SpaceID string `json:"space_id"`

	URL         string `json:"url"`
	Description string `json:"description"`

	// Secret signs deliveries. Empty disables the signature header.
	Secret string `json:"-"`

	// Collections are patterns for the collections this endpoint receives.
	// Empty means every collection.
	Collections []string `json:"collections,omitempty"`

	// Events are patterns for event kinds. Empty means every kind.
	Events []string `json:"events,omitempty"`

	Enabled bool `json:"enabled"`

	// RateLimit caps deliveries per second to this URL. 0 is unlimited.
	RateLimit int `json:"rate_limit"`
}

// Global reports whether the endpoint applies to every space.
func (e *Endpoint) Global() bool { return e.SpaceID == "" }

// Target is a resolved delivery destination.
type Target struct {
	EndpointID id.ID
	URL        string
	Secret     string
	RateLimit  int
}

package endpoint

import (
	"context"

	"github.com/xraph/press/id"
)

// Store defines the persistence contract for webhook endpoints.
type Store interface {
	CreateEndpoint(ctx context.Context, ep *Endpoint) error
	GetEndpoint(ctx context.Context, epID id.ID) (*Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error
	DeleteEndpoint(ctx context.Context, epID id.ID) error

	// ListEndpoints returns the endpoints owned by spaceID. An empty spaceID
	// lists global endpoints.
	ListEndpoints(ctx context.Context, spaceID string, opts ListOpts) ([]*Endpoint, error)

	// ActiveEndpoints returns the enabled endpoints that apply to spaceID:
	// its own plus the global ones, oldest first. This runs on every publish.
	ActiveEndpoints(ctx context.Context, spaceID string) ([]*Endpoint, error)

	SetEnabled(ctx context.Context, epID id.ID, enabled bool) error
}

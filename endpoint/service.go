package endpoint

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
	"github.com/xraph/press/signature"
)

// Service provides endpoint management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new endpoint service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Create registers a webhook endpoint.
func (svc *Service) Create(ctx context.Context, in Input) (*Endpoint, error) {
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}
	if in.RateLimit < 0 {
		return nil, &ValidationError{Field: "rate_limit", Message: "must not be negative"}
	}

	secret := in.Secret
	if secret == "" && !in.Unsigned {
		secret = signature.GenerateSecret()
	}

	ep := &Endpoint{
		Entity:      entity.New(),
		ID:          id.NewEndpointID(),
		SpaceID:     in.SpaceID,
		URL:         in.URL,
		Description: in.Description,
		Secret:      secret,
		Collections: in.Collections,
		Events:      in.Events,
		Enabled:     true,
		RateLimit:   in.RateLimit,
	}

	if err := svc.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "webhook endpoint created",
		"endpoint_id", ep.ID,
		"space_id", ep.SpaceID,
		"url", ep.URL,
	)

	return ep, nil
}

// Get returns an endpoint by ID.
func (svc *Service) Get(ctx context.Context, epID id.ID) (*Endpoint, error) {
	return svc.store.GetEndpoint(ctx, epID)
}

// Update modifies an endpoint. Empty fields keep their current value; the
// owning space cannot change.
func (svc *Service) Update(ctx context.Context, epID id.ID, in Input) (*Endpoint, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}

	if in.URL != "" {
		if err := validateURL(in.URL); err != nil {
			return nil, err
		}
		ep.URL = in.URL
	}
	if in.Description != "" {
		ep.Description = in.Description
	}
	if in.Collections != nil {
		ep.Collections = in.Collections
	}
	if in.Events != nil {
		ep.Events = in.Events
	}
	if in.RateLimit > 0 {
		ep.RateLimit = in.RateLimit
	}
	if in.Unsigned {
		ep.Secret = ""
	} else if in.Secret != "" {
		ep.Secret = in.Secret
	}
	ep.UpdatedAt = time.Now().UTC()

	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	return ep, nil
}

// Delete removes an endpoint. Deliveries already enqueued still fire.
func (svc *Service) Delete(ctx context.Context, epID id.ID) error {
	return svc.store.DeleteEndpoint(ctx, epID)
}

// List returns the endpoints owned by a space, or the global ones for "".
func (svc *Service) List(ctx context.Context, spaceID string, opts ListOpts) ([]*Endpoint, error) {
	return svc.store.ListEndpoints(ctx, spaceID, opts)
}

// SetEnabled enables or disables an endpoint.
func (svc *Service) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	return svc.store.SetEnabled(ctx, epID, enabled)
}

// RotateSecret replaces the signing secret of an endpoint.
func (svc *Service) RotateSecret(ctx context.Context, epID id.ID) (string, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return "", err
	}

	ep.Secret = signature.GenerateSecret()
	ep.UpdatedAt = time.Now().UTC()
	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return "", err
	}

	return ep.Secret, nil
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "endpoint validation: " + e.Field + ": " + e.Message
}

package redis

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// endpointModel is the JSON representation stored in Redis.
type endpointModel struct {
	ID          string    `json:"id"`
	SpaceID     string    `json:"space_id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Secret      string    `json:"secret"`
	Collections []string  `json:"collections,omitempty"`
	Events      []string  `json:"events,omitempty"`
	Enabled     bool      `json:"enabled"`
	RateLimit   int       `json:"rate_limit"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:          ep.ID.String(),
		SpaceID:     ep.SpaceID,
		URL:         ep.URL,
		Description: ep.Description,
		Secret:      ep.Secret,
		Collections: ep.Collections,
		Events:      ep.Events,
		Enabled:     ep.Enabled,
		RateLimit:   ep.RateLimit,
		CreatedAt:   ep.CreatedAt,
		UpdatedAt:   ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          epID,
		SpaceID:     m.SpaceID,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Collections: m.Collections,
		Events:      m.Events,
		Enabled:     m.Enabled,
		RateLimit:   m.RateLimit,
	}, nil
}

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	key := entityKey(prefixEndpoint, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("press/redis: create endpoint: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zEndpointSpace+m.SpaceID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.Enabled {
		pipe.SAdd(ctx, enabledSetKey(m.SpaceID), m.ID)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/redis: create endpoint indexes: %w", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, endpoint.ErrNotFound
		}
		return nil, fmt.Errorf("press/redis: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	key := entityKey(prefixEndpoint, ep.ID.String())

	var existing endpointModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return endpoint.ErrNotFound
		}
		return fmt.Errorf("press/redis: update endpoint get: %w", err)
	}

	m := toEndpointModel(ep)
	// Ownership and creation time are fixed at create.
	m.SpaceID = existing.SpaceID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("press/redis: update endpoint: %w", err)
	}
	return s.syncEnabled(ctx, m)
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return endpoint.ErrNotFound
		}
		return fmt.Errorf("press/redis: delete endpoint get: %w", err)
	}

	if err := s.deleteEntity(ctx, key); err != nil {
		return fmt.Errorf("press/redis: delete endpoint: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZRem(ctx, zEndpointSpace+m.SpaceID, m.ID)
	pipe.SRem(ctx, enabledSetKey(m.SpaceID), m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("press/redis: delete endpoint indexes: %w", err)
	}
	return nil
}

// ListEndpoints returns the endpoints owned by spaceID, oldest first.
func (s *Store) ListEndpoints(ctx context.Context, spaceID string, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	ids, err := s.rdb.ZRange(ctx, zEndpointSpace+spaceID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("press/redis: list endpoints: %w", err)
	}

	models, err := loadAll[endpointModel](ctx, s, prefixEndpoint, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: list endpoints: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(models))
	for _, m := range models {
		if opts.Enabled != nil && m.Enabled != *opts.Enabled {
			continue
		}
		ep, err := fromEndpointModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, ep)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ActiveEndpoints returns the enabled endpoints of spaceID plus the global
// ones, ordered by creation time then ID.
func (s *Store) ActiveEndpoints(ctx context.Context, spaceID string) ([]*endpoint.Endpoint, error) {
	ids, err := s.rdb.SUnion(ctx, enabledSetKey(spaceID), enabledSetKey("")).Result()
	if err != nil {
		return nil, fmt.Errorf("press/redis: active endpoints: %w", err)
	}

	models, err := loadAll[endpointModel](ctx, s, prefixEndpoint, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: active endpoints: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		ep, err := fromEndpointModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, ep)
	}

	slices.SortFunc(result, func(a, b *endpoint.Endpoint) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return result, nil
}

func (s *Store) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return endpoint.ErrNotFound
		}
		return fmt.Errorf("press/redis: set enabled get: %w", err)
	}

	m.Enabled = enabled
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("press/redis: set enabled: %w", err)
	}
	return s.syncEnabled(ctx, &m)
}

func (s *Store) syncEnabled(ctx context.Context, m *endpointModel) error {
	var err error
	if m.Enabled {
		err = s.rdb.SAdd(ctx, enabledSetKey(m.SpaceID), m.ID).Err()
	} else {
		err = s.rdb.SRem(ctx, enabledSetKey(m.SpaceID), m.ID).Err()
	}
	if err != nil {
		return fmt.Errorf("press/redis: sync enabled set: %w", err)
	}
	return nil
}

package endpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/press/catalog"
)

// Resolver turns a space and collection into the set of webhook targets.
type Resolver struct {
	store  Store
	global []Target
	logger *slog.Logger
}

// NewResolver returns a Resolver over store. static targets apply to every
// space and every collection, ahead of any stored endpoint.
func NewResolver(store Store, static []Target, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, global: static, logger: logger}
}

// Resolve returns the targets for an event of kind raised in a space and
// collection: static globals, stored globals, tenant-wide endpoints, then
// collection-specific ones. Targets are de-duplicated by URL; the first
// occurrence wins.
func (r *Resolver) Resolve(ctx context.Context, spaceID, collection, kind string) ([]Target, error) {
	seen := make(map[string]struct{}, len(r.global))
	out := make([]Target, 0, len(r.global))

	add := func(t Target) {
		if _, dup := seen[t.URL]; dup {
			return
		}
		seen[t.URL] = struct{}{}
		out = append(out, t)
	}

	for _, t := range r.global {
		add(t)
	}

	if r.store == nil {
		return out, nil
	}

	eps, err := r.store.ActiveEndpoints(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("press: resolve endpoints: %w", err)
	}

	var global, tenantWide, scoped []*Endpoint
	for _, ep := range eps {
		if !ep.Enabled || (!ep.Global() && ep.SpaceID != spaceID) {
			continue
		}
		if !catalog.MatchAny(ep.Events, kind) || !catalog.MatchAny(ep.Collections, collection) {
			continue
		}
		switch {
		case ep.Global():
			global = append(global, ep)
		case len(ep.Collections) == 0:
			tenantWide = append(tenantWide, ep)
		default:
			scoped = append(scoped, ep)
		}
	}

	for _, group := range [][]*Endpoint{global, tenantWide, scoped} {
		for _, ep := range group {
			add(Target{
				EndpointID: ep.ID,
				URL:        ep.URL,
				Secret:     ep.Secret,
				RateLimit:  ep.RateLimit,
			})
		}
	}

	return out, nil
}

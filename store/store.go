// Package store defines the composite Store interface for all Press persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them, so one backend serves the whole pipeline.
package store

import (
	"context"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/revision"
)

// Store is the aggregate persistence interface.
type Store interface {
	entry.Store
	revision.Store
	endpoint.Store
	delivery.Store
	dlq.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

package press

import (
	"errors"

	"github.com/xraph/press/catalog"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/publishing"
	"github.com/xraph/press/revision"
	"github.com/xraph/press/tenant"
)

// Sentinel errors returned by Press operations.
var (
	// ErrNoStore is returned when a Press is created without a store.
	ErrNoStore = errors.New("press: store is required")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("press: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("press: migration failed")

	// ErrInvalidTransition is returned when a lifecycle operation is not
	// allowed from the entry's current status.
	ErrInvalidTransition = publishing.ErrInvalidTransition

	// ErrScheduleInPast is returned when scheduling at or before now.
	ErrScheduleInPast = publishing.ErrScheduleInPast

	// ErrNoTenant is returned when an operation runs without a space.
	ErrNoTenant = tenant.ErrMissing

	// ErrTransitionConflict is returned when another writer moved the entry first.
	ErrTransitionConflict = entry.ErrConflict

	// ErrEntryNotFound is returned when an entry cannot be found in the space.
	ErrEntryNotFound = entry.ErrNotFound

	// ErrRevisionNotFound is returned when a revision cannot be found in the space.
	ErrRevisionNotFound = revision.ErrNotFound

	// ErrRevisionMismatch is returned when a revision is restored onto another entry.
	ErrRevisionMismatch = revision.ErrEntryMismatch

	// ErrSchemaViolation is returned when entry data fails its collection schema.
	ErrSchemaViolation = catalog.ErrSchemaViolation

	// ErrEndpointNotFound is returned when an endpoint cannot be found.
	ErrEndpointNotFound = endpoint.ErrNotFound

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = delivery.ErrNotFound

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = dlq.ErrNotFound
)

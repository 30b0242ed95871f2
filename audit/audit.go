// Package audit records who changed what, in which space.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/press/id"
)

// Actions written by the pipeline.
const (
	ActionRestore = "entry.restore"
	ActionPublish = "entry.publish"
	ActionArchive = "entry.archive"
)

// Record is one audit line.
type Record struct {
	ID        id.ID          `json:"id"`
	SpaceID   string         `json:"space_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Diff      map[string]any `json:"diff,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListOpts configures audit listing.
type ListOpts struct {
	Resource string
	Offset   int
	Limit    int
}

// Store persists audit records.
type Store interface {
	WriteAudit(ctx context.Context, r *Record) error
	ListAudit(ctx context.Context, spaceID string, opts ListOpts) ([]*Record, error)
}

// Logger is the audit sink used by services.
type Logger interface {
	Write(ctx context.Context, action, resource string, diff map[string]any, spaceID, actorID string) error
}

// Service persists audit records and mirrors them to the structured log.
type Service struct {
	store  Store
	logger *slog.Logger
}

var _ Logger = (*Service)(nil)

// NewService returns an audit Service. A nil store only logs.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Write implements Logger.
func (s *Service) Write(ctx context.Context, action, resource string, diff map[string]any, spaceID, actorID string) error {
	r := &Record{
		ID:        id.NewAuditID(),
		SpaceID:   spaceID,
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Diff:      diff,
		CreatedAt: time.Now().UTC(),
	}

	s.logger.InfoContext(ctx, "audit",
		"action", action,
		"resource", resource,
		"space_id", spaceID,
		"actor_id", actorID,
	)

	if s.store == nil {
		return nil
	}
	if err := s.store.WriteAudit(ctx, r); err != nil {
		return fmt.Errorf("press: write audit: %w", err)
	}
	return nil
}

// List returns the audit trail of a space, newest first.
func (s *Service) List(ctx context.Context, spaceID string, opts ListOpts) ([]*Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListAudit(ctx, spaceID, opts)
}

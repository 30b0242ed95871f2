package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
	"github.com/xraph/press/revision"
)

// --- Entry models ---

type entryModel struct {
	grove.BaseModel `grove:"table:press_entries"`

	ID          string         `grove:"id,pk"`
	SpaceID     string         `grove:"space_id"`
	Collection  string         `grove:"collection"`
	Title       string         `grove:"title"`
	Slug        string         `grove:"slug"`
	Status      string         `grove:"status"`
	PublishedAt *time.Time     `grove:"published_at"`
	UnpublishAt *time.Time     `grove:"unpublish_at"`
	Data        map[string]any `grove:"data,type:jsonb"`
	CreatedAt   time.Time      `grove:"created_at"`
	UpdatedAt   time.Time      `grove:"updated_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:          e.ID.String(),
		SpaceID:     e.SpaceID,
		Collection:  e.CollectionID,
		Title:       e.Title,
		Slug:        e.Slug,
		Status:      string(e.Status),
		PublishedAt: e.PublishedAt,
		UnpublishAt: e.UnpublishAt,
		Data:        e.Data,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.ID, err)
	}
	return &entry.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           entryID,
		SpaceID:      m.SpaceID,
		CollectionID: m.Collection,
		Title:        m.Title,
		Slug:         m.Slug,
		Status:       entry.Status(m.Status),
		PublishedAt:  m.PublishedAt,
		UnpublishAt:  m.UnpublishAt,
		Data:         m.Data,
	}, nil
}

// --- Revision models ---

type revisionModel struct {
	grove.BaseModel `grove:"table:press_revisions"`

	ID        string         `grove:"id,pk"`
	SpaceID   string         `grove:"space_id"`
	EntryID   string         `grove:"entry_id"`
	Snapshot  map[string]any `grove:"snapshot,type:jsonb"`
	Diff      revision.Diff  `grove:"diff,type:jsonb"`
	CreatedBy string         `grove:"created_by"`
	CreatedAt time.Time      `grove:"created_at"`
}

func toRevisionModel(r *revision.Revision) *revisionModel {
	return &revisionModel{
		ID:        r.ID.String(),
		SpaceID:   r.SpaceID,
		EntryID:   r.EntryID.String(),
		Snapshot:  r.Snapshot,
		Diff:      r.Diff,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}

func fromRevisionModel(m *revisionModel) (*revision.Revision, error) {
	revID, err := id.ParseRevisionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse revision ID %q: %w", m.ID, err)
	}
	entryID, err := id.ParseEntryID(m.EntryID)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.EntryID, err)
	}
	return &revision.Revision{
		ID:        revID,
		SpaceID:   m.SpaceID,
		EntryID:   entryID,
		Snapshot:  m.Snapshot,
		Diff:      m.Diff,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}, nil
}

// --- Endpoint models ---

type endpointModel struct {
	grove.BaseModel `grove:"table:press_endpoints"`

	ID          string    `grove:"id,pk"`
	SpaceID     string    `grove:"space_id"`
	URL         string    `grove:"url"`
	Description string    `grove:"description"`
	Secret      string    `grove:"secret"`
	Collections []string  `grove:"collections,array"`
	Events      []string  `grove:"events,array"`
	Enabled     bool      `grove:"enabled"`
	RateLimit   int       `grove:"rate_limit"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
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

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:press_deliveries"`

	ID             string        `grove:"id,pk"`
	SpaceID        string        `grove:"space_id"`
	Collection     string        `grove:"collection"`
	EntryID        string        `grove:"entry_id"`
	EndpointID     string        `grove:"endpoint_id"`
	Event          string        `grove:"event"`
	URL            string        `grove:"url"`
	Payload        event.Payload `grove:"payload,type:jsonb"`
	Secret         string        `grove:"secret"`
	RateLimit      int           `grove:"rate_limit"`
	IdempotencyKey string        `grove:"idempotency_key"`
	State          string        `grove:"state"`
	AttemptCount   int           `grove:"attempt_count"`
	MaxAttempts    int           `grove:"max_attempts"`
	NextAttemptAt  time.Time     `grove:"next_attempt_at"`
	LastError      string        `grove:"last_error"`
	LastStatusCode int           `grove:"last_status_code"`
	LastResponse   string        `grove:"last_response"`
	LastLatencyMs  int           `grove:"last_latency_ms"`
	CompletedAt    *time.Time    `grove:"completed_at"`
	LockedUntil    *time.Time    `grove:"locked_until"`
	CreatedAt      time.Time     `grove:"created_at"`
	UpdatedAt      time.Time     `grove:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		SpaceID:        d.SpaceID,
		Collection:     d.Collection,
		EntryID:        d.EntryID.String(),
		EndpointID:     d.EndpointID.String(),
		Event:          d.Event,
		URL:            d.URL,
		Payload:        d.Payload,
		Secret:         d.Secret,
		RateLimit:      d.RateLimit,
		IdempotencyKey: d.IdempotencyKey,
		State:          string(d.State),
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		NextAttemptAt:  d.NextAttemptAt,
		LastError:      d.LastError,
		LastStatusCode: d.LastStatusCode,
		LastResponse:   d.LastResponse,
		LastLatencyMs:  d.LastLatencyMs,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	entryID, err := id.ParseEntryID(m.EntryID)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.EntryID, err)
	}
	epID, err := id.ParseOptional(m.EndpointID, id.PrefixEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		SpaceID:        m.SpaceID,
		Collection:     m.Collection,
		EntryID:        entryID,
		EndpointID:     epID,
		Event:          m.Event,
		URL:            m.URL,
		Payload:        m.Payload,
		Secret:         m.Secret,
		RateLimit:      m.RateLimit,
		IdempotencyKey: m.IdempotencyKey,
		State:          delivery.State(m.State),
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		LastResponse:   m.LastResponse,
		LastLatencyMs:  m.LastLatencyMs,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// --- DLQ models ---

type dlqEntryModel struct {
	grove.BaseModel `grove:"table:press_dlq"`

	ID             string        `grove:"id,pk"`
	DeliveryID     string        `grove:"delivery_id"`
	SpaceID        string        `grove:"space_id"`
	Collection     string        `grove:"collection"`
	EntryID        string        `grove:"entry_id"`
	EndpointID     string        `grove:"endpoint_id"`
	Event          string        `grove:"event"`
	URL            string        `grove:"url"`
	Payload        event.Payload `grove:"payload,type:jsonb"`
	Secret         string        `grove:"secret"`
	IdempotencyKey string        `grove:"idempotency_key"`
	Error          string        `grove:"error"`
	AttemptCount   int           `grove:"attempt_count"`
	LastStatusCode int           `grove:"last_status_code"`
	FailedAt       time.Time     `grove:"failed_at"`
	ReplayedAt     *time.Time    `grove:"replayed_at"`
	CreatedAt      time.Time     `grove:"created_at"`
	UpdatedAt      time.Time     `grove:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		SpaceID:        e.SpaceID,
		Collection:     e.Collection,
		EntryID:        e.EntryID.String(),
		EndpointID:     e.EndpointID.String(),
		Event:          e.Event,
		URL:            e.URL,
		Payload:        e.Payload,
		Secret:         e.Secret,
		IdempotencyKey: e.IdempotencyKey,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		FailedAt:       e.FailedAt,
		ReplayedAt:     e.ReplayedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dlq ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseOptional(m.DeliveryID, id.PrefixDelivery)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	entryID, err := id.ParseOptional(m.EntryID, id.PrefixEntry)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.EntryID, err)
	}
	epID, err := id.ParseOptional(m.EndpointID, id.PrefixEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		SpaceID:        m.SpaceID,
		Collection:     m.Collection,
		EntryID:        entryID,
		EndpointID:     epID,
		Event:          m.Event,
		URL:            m.URL,
		Payload:        m.Payload,
		Secret:         m.Secret,
		IdempotencyKey: m.IdempotencyKey,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		FailedAt:       m.FailedAt,
		ReplayedAt:     m.ReplayedAt,
	}, nil
}

// --- Audit models ---

type auditModel struct {
	grove.BaseModel `grove:"table:press_audit"`

	ID        string         `grove:"id,pk"`
	SpaceID   string         `grove:"space_id"`
	ActorID   string         `grove:"actor_id"`
	Action    string         `grove:"action"`
	Resource  string         `grove:"resource"`
	Diff      map[string]any `grove:"diff,type:jsonb"`
	CreatedAt time.Time      `grove:"created_at"`
}

func toAuditModel(r *audit.Record) *auditModel {
	return &auditModel{
		ID:        r.ID.String(),
		SpaceID:   r.SpaceID,
		ActorID:   r.ActorID,
		Action:    r.Action,
		Resource:  r.Resource,
		Diff:      r.Diff,
		CreatedAt: r.CreatedAt,
	}
}

func fromAuditModel(m *auditModel) (*audit.Record, error) {
	audID, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit ID %q: %w", m.ID, err)
	}
	return &audit.Record{
		ID:        audID,
		SpaceID:   m.SpaceID,
		ActorID:   m.ActorID,
		Action:    m.Action,
		Resource:  m.Resource,
		Diff:      m.Diff,
		CreatedAt: m.CreatedAt,
	}, nil
}

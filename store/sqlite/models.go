package sqlite

import (
	"encoding/json"
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

	ID          string     `grove:"id,pk"`
	SpaceID     string     `grove:"space_id"`
	Collection  string     `grove:"collection"`
	Title       string     `grove:"title"`
	Slug        string     `grove:"slug"`
	Status      string     `grove:"status"`
	PublishedAt *time.Time `grove:"published_at"`
	UnpublishAt *time.Time `grove:"unpublish_at"`
	Data        string     `grove:"data"` // JSON text
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
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
		Data:        encodeJSON(e.Data),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.ID, err)
	}
	var data map[string]any
	if err := decodeJSON(m.Data, &data); err != nil {
		return nil, fmt.Errorf("decode entry %q data: %w", m.ID, err)
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
		Data:         data,
	}, nil
}

// --- Revision models ---

type revisionModel struct {
	grove.BaseModel `grove:"table:press_revisions"`

	ID        string    `grove:"id,pk"`
	SpaceID   string    `grove:"space_id"`
	EntryID   string    `grove:"entry_id"`
	Snapshot  string    `grove:"snapshot"` // JSON text
	Diff      string    `grove:"diff"`     // JSON text
	CreatedBy string    `grove:"created_by"`
	CreatedAt time.Time `grove:"created_at"`
}

func toRevisionModel(r *revision.Revision) *revisionModel {
	return &revisionModel{
		ID:        r.ID.String(),
		SpaceID:   r.SpaceID,
		EntryID:   r.EntryID.String(),
		Snapshot:  encodeJSON(r.Snapshot),
		Diff:      encodeJSON(r.Diff),
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
	r := &revision.Revision{
		ID:        revID,
		SpaceID:   m.SpaceID,
		EntryID:   entryID,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
	if err := decodeJSON(m.Snapshot, &r.Snapshot); err != nil {
		return nil, fmt.Errorf("decode revision %q snapshot: %w", m.ID, err)
	}
	if err := decodeJSON(m.Diff, &r.Diff); err != nil {
		return nil, fmt.Errorf("decode revision %q diff: %w", m.ID, err)
	}
	return r, nil
}

// --- Endpoint models ---

type endpointModel struct {
	grove.BaseModel `grove:"table:press_endpoints"`

	ID          string    `grove:"id,pk"`
	SpaceID     string    `grove:"space_id"`
	URL         string    `grove:"url"`
	Description string    `grove:"description"`
	Secret      string    `grove:"secret"`
	Collections string    `grove:"collections"` // JSON array
	Events      string    `grove:"events"`      // JSON array
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
		Collections: encodeJSON(ep.Collections),
		Events:      encodeJSON(ep.Events),
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
	ep := &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          epID,
		SpaceID:     m.SpaceID,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Enabled:     m.Enabled,
		RateLimit:   m.RateLimit,
	}
	if err := decodeJSON(m.Collections, &ep.Collections); err != nil {
		return nil, fmt.Errorf("decode endpoint %q collections: %w", m.ID, err)
	}
	if err := decodeJSON(m.Events, &ep.Events); err != nil {
		return nil, fmt.Errorf("decode endpoint %q events: %w", m.ID, err)
	}
	return ep, nil
}

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:press_deliveries"`

	ID             string     `grove:"id,pk"`
	SpaceID        string     `grove:"space_id"`
	Collection     string     `grove:"collection"`
	EntryID        string     `grove:"entry_id"`
	EndpointID     string     `grove:"endpoint_id"`
	Event          string     `grove:"event"`
	URL            string     `grove:"url"`
	Payload        string     `grove:"payload"` // JSON text
	Secret         string     `grove:"secret"`
	RateLimit      int        `grove:"rate_limit"`
	IdempotencyKey string     `grove:"idempotency_key"`
	State          string     `grove:"state"`
	AttemptCount   int        `grove:"attempt_count"`
	MaxAttempts    int        `grove:"max_attempts"`
	NextAttemptAt  time.Time  `grove:"next_attempt_at"`
	LastError      string     `grove:"last_error"`
	LastStatusCode int        `grove:"last_status_code"`
	LastResponse   string     `grove:"last_response"`
	LastLatencyMs  int        `grove:"last_latency_ms"`
	CompletedAt    *time.Time `grove:"completed_at"`
	LockedUntil    *time.Time `grove:"locked_until"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
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
		Payload:        encodeJSON(d.Payload),
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
	var payload event.Payload
	if err := decodeJSON(m.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode delivery %q payload: %w", m.ID, err)
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
		Payload:        payload,
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

	ID             string     `grove:"id,pk"`
	DeliveryID     string     `grove:"delivery_id"`
	SpaceID        string     `grove:"space_id"`
	Collection     string     `grove:"collection"`
	EntryID        string     `grove:"entry_id"`
	EndpointID     string     `grove:"endpoint_id"`
	Event          string     `grove:"event"`
	URL            string     `grove:"url"`
	Payload        string     `grove:"payload"` // JSON text
	Secret         string     `grove:"secret"`
	IdempotencyKey string     `grove:"idempotency_key"`
	Error          string     `grove:"error"`
	AttemptCount   int        `grove:"attempt_count"`
	LastStatusCode int        `grove:"last_status_code"`
	FailedAt       time.Time  `grove:"failed_at"`
	ReplayedAt     *time.Time `grove:"replayed_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
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
		Payload:        encodeJSON(e.Payload),
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
	var payload event.Payload
	if err := decodeJSON(m.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode dlq %q payload: %w", m.ID, err)
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
		Payload:        payload,
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

	ID        string    `grove:"id,pk"`
	SpaceID   string    `grove:"space_id"`
	ActorID   string    `grove:"actor_id"`
	Action    string    `grove:"action"`
	Resource  string    `grove:"resource"`
	Diff      string    `grove:"diff"` // JSON text
	CreatedAt time.Time `grove:"created_at"`
}

func toAuditModel(r *audit.Record) *auditModel {
	return &auditModel{
		ID:        r.ID.String(),
		SpaceID:   r.SpaceID,
		ActorID:   r.ActorID,
		Action:    r.Action,
		Resource:  r.Resource,
		Diff:      encodeJSON(r.Diff),
		CreatedAt: r.CreatedAt,
	}
}

func fromAuditModel(m *auditModel) (*audit.Record, error) {
	audID, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit ID %q: %w", m.ID, err)
	}
	r := &audit.Record{
		ID:        audID,
		SpaceID:   m.SpaceID,
		ActorID:   m.ActorID,
		Action:    m.Action,
		Resource:  m.Resource,
		CreatedAt: m.CreatedAt,
	}
	if err := decodeJSON(m.Diff, &r.Diff); err != nil {
		return nil, fmt.Errorf("decode audit %q diff: %w", m.ID, err)
	}
	return r, nil
}

// --- JSON helpers ---

func encodeJSON(v any) string {
	b, _ := json.Marshal(v) //nolint:errcheck // best-effort serialization
	return string(b)
}

func decodeJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

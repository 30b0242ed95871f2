package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/press/dlq"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string        `json:"id"`
	DeliveryID     string        `json:"delivery_id"`
	SpaceID        string        `json:"space_id"`
	Collection     string        `json:"collection"`
	EntryID        string        `json:"entry_id"`
	EndpointID     string        `json:"endpoint_id"`
	Event          string        `json:"event"`
	URL            string        `json:"url"`
	Payload        event.Payload `json:"payload"`
	Secret         string        `json:"secret"`
	IdempotencyKey string        `json:"idempotency_key"`
	Error          string        `json:"error"`
	AttemptCount   int           `json:"attempt_count"`
	LastStatusCode int           `json:"last_status_code"`
	FailedAt       time.Time     `json:"failed_at"`
	ReplayedAt     *time.Time    `json:"replayed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
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
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
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

func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	m := toDLQEntryModel(e)
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("press/redis: push dlq marshal: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, entityKey(prefixDLQ, m.ID), raw, 0)
		pipe.ZAdd(ctx, zDLQAll, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("press/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries, newest failure first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if opts.From != nil {
		lo = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		hi = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("press/redis: list dlq: %w", err)
	}

	models, err := loadAll[dlqEntryModel](ctx, s, prefixDLQ, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		if opts.SpaceID != "" && m.SpaceID != opts.SpaceID {
			continue
		}
		if opts.URL != "" && m.URL != opts.URL {
			continue
		}
		if opts.Pending && m.ReplayedAt != nil {
			continue
		}
		e, err := fromDLQEntryModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, fmt.Errorf("press/redis: get dlq: %w", err)
	}
	return fromDLQEntryModel(&m)
}

func (s *Store) MarkReplayed(ctx context.Context, dlqID id.ID, t time.Time) error {
	key := entityKey(prefixDLQ, dlqID.String())

	var m dlqEntryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return dlq.ErrNotFound
		}
		return fmt.Errorf("press/redis: mark replayed get: %w", err)
	}

	t = t.UTC()
	m.ReplayedAt = &t
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("press/redis: mark replayed: %w", err)
	}
	return nil
}

// Purge removes entries whose failure time is strictly before before.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("press/redis: purge dlq: %w", err)
	}

	models, err := loadAll[dlqEntryModel](ctx, s, prefixDLQ, ids)
	if err != nil {
		return 0, fmt.Errorf("press/redis: purge dlq: %w", err)
	}

	var purged int64
	pipe := s.rdb.TxPipeline()
	for _, m := range models {
		if !m.FailedAt.Before(before) {
			continue
		}
		pipe.Del(ctx, entityKey(prefixDLQ, m.ID))
		pipe.ZRem(ctx, zDLQAll, m.ID)
		purged++
	}
	if purged == 0 {
		return 0, nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("press/redis: purge dlq: %w", err)
	}
	return purged, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("press/redis: count dlq: %w", err)
	}
	return count, nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// ClaimLease is how long a dequeued delivery stays hidden from other
// workers. A worker that dies mid-attempt leaves the delivery claimable
// again once the lease runs out.
const ClaimLease = 5 * time.Minute

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string        `json:"id"`
	SpaceID        string        `json:"space_id"`
	Collection     string        `json:"collection"`
	EntryID        string        `json:"entry_id"`
	EndpointID     string        `json:"endpoint_id"`
	Event          string        `json:"event"`
	URL            string        `json:"url"`
	Payload        event.Payload `json:"payload"`
	Secret         string        `json:"secret"`
	RateLimit      int           `json:"rate_limit"`
	IdempotencyKey string        `json:"idempotency_key"`
	State          string        `json:"state"`
	AttemptCount   int           `json:"attempt_count"`
	MaxAttempts    int           `json:"max_attempts"`
	NextAttemptAt  time.Time     `json:"next_attempt_at"`
	LastError      string        `json:"last_error"`
	LastStatusCode int           `json:"last_status_code"`
	LastResponse   string        `json:"last_response"`
	LastLatencyMs  int           `json:"last_latency_ms"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
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

// dequeueScript atomically claims due deliveries by pushing their score to
// the lease expiry.
// KEYS[1] = press:z:dlv:pending
// ARGV[1] = current score (claim threshold)
// ARGV[2] = limit
// ARGV[3] = lease expiry score
var dequeueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
    redis.call('ZADD', KEYS[1], ARGV[3], id)
end
return ids
`)

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	return s.EnqueueBatch(ctx, []*delivery.Delivery{d})
}

// EnqueueBatch writes every delivery and its indexes in one MULTI block.
func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, d := range ds {
			m := toDeliveryModel(d)
			raw, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal delivery: %w", err)
			}
			pipe.Set(ctx, entityKey(prefixDelivery, m.ID), raw, 0)
			if m.State == string(delivery.StatePending) {
				pipe.ZAdd(ctx, zDeliveryPend, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
			}
			pipe.ZAdd(ctx, scopedKey(zDeliveryEntry, m.SpaceID, m.EntryID),
				goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("press/redis: enqueue batch: %w", err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, t time.Time, limit int) ([]*delivery.Delivery, error) {
	threshold := strconv.FormatFloat(scoreFromTime(t), 'f', -1, 64)
	lease := strconv.FormatFloat(scoreFromTime(t.Add(ClaimLease)), 'f', -1, 64)

	claimed, err := dequeueScript.Run(ctx, s.rdb, []string{zDeliveryPend}, threshold, limit, lease).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("press/redis: dequeue script: %w", err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	deliveries := make([]*delivery.Delivery, 0, len(claimed))
	for _, delID := range claimed {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, delID), &m); err != nil {
			if isNotFound(err) {
				s.rdb.ZRem(ctx, zDeliveryPend, delID)
				continue
			}
			return nil, fmt.Errorf("press/redis: dequeue get: %w", err)
		}
		if m.State != string(delivery.StatePending) {
			s.rdb.ZRem(ctx, zDeliveryPend, delID)
			continue
		}

		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	return deliveries, nil
}

// UpdateDelivery writes the attempt outcome. A pending delivery is
// re-scored to its next attempt, which releases the lease; a terminal one
// leaves the pending index.
func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	key := entityKey(prefixDelivery, d.ID.String())

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("press/redis: update delivery: %w", err)
	}
	if exists == 0 {
		return delivery.ErrNotFound
	}

	m := toDeliveryModel(d)
	m.UpdatedAt = now()
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("press/redis: update delivery marshal: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, raw, 0)
		if d.State == delivery.StatePending {
			pipe.ZAdd(ctx, zDeliveryPend, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
		} else {
			pipe.ZRem(ctx, zDeliveryPend, m.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("press/redis: update delivery: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, delivery.ErrNotFound
		}
		return nil, fmt.Errorf("press/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

// ListByEntry returns the deliveries of an entry, newest first.
func (s *Store) ListByEntry(ctx context.Context, spaceID string, entryID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	ids, err := s.rdb.ZRevRange(ctx, scopedKey(zDeliveryEntry, spaceID, entryID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("press/redis: list by entry: %w", err)
	}

	models, err := loadAll[deliveryModel](ctx, s, prefixDelivery, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: list by entry: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(models))
	for _, m := range models {
		if opts.State != nil && delivery.State(m.State) != *opts.State {
			continue
		}
		d, err := fromDeliveryModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDeliveryPend).Result()
	if err != nil {
		return 0, fmt.Errorf("press/redis: count pending: %w", err)
	}
	return count, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
	"github.com/xraph/press/internal/entity"
)

// entryModel is the JSON representation stored in Redis.
type entryModel struct {
	ID          string         `json:"id"`
	SpaceID     string         `json:"space_id"`
	Collection  string         `json:"collection"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	Status      string         `json:"status"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	UnpublishAt *time.Time     `json:"unpublish_at,omitempty"`
	Data        map[string]any `json:"data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
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
	data := m.Data
	if data == nil {
		data = map[string]any{}
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

// indexEntry queues the sweep index writes for m on pipe. An entry sits in
// the scheduled set only while scheduled and in the expiring set only while
// published with an unpublish time.
func indexEntry(ctx context.Context, pipe goredis.Pipeliner, m *entryModel) {
	if m.Status == string(entry.StatusScheduled) && m.PublishedAt != nil {
		pipe.ZAdd(ctx, zEntryScheduled, goredis.Z{Score: scoreFromTime(*m.PublishedAt), Member: m.ID})
	} else {
		pipe.ZRem(ctx, zEntryScheduled, m.ID)
	}
	if m.Status == string(entry.StatusPublished) && m.UnpublishAt != nil {
		pipe.ZAdd(ctx, zEntryExpiring, goredis.Z{Score: scoreFromTime(*m.UnpublishAt), Member: m.ID})
	} else {
		pipe.ZRem(ctx, zEntryExpiring, m.ID)
	}
}

// CreateEntry persists a new entry.
func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	m := toEntryModel(e)
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("press/redis: create entry marshal: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, entityKey(prefixEntry, m.ID), raw, 0)
		pipe.ZAdd(ctx, zEntrySpace+m.SpaceID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		indexEntry(ctx, pipe, m)
		return nil
	})
	if err != nil {
		return fmt.Errorf("press/redis: create entry: %w", err)
	}
	return nil
}

// GetEntry returns an entry of spaceID.
func (s *Store) GetEntry(ctx context.Context, spaceID string, entryID id.ID) (*entry.Entry, error) {
	var m entryModel
	if err := s.getEntity(ctx, entityKey(prefixEntry, entryID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, entry.ErrNotFound
		}
		return nil, fmt.Errorf("press/redis: get entry: %w", err)
	}
	if m.SpaceID != spaceID {
		return nil, entry.ErrNotFound
	}
	return fromEntryModel(&m)
}

// UpdateEntry writes the content fields of an entry.
func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	return s.mutateEntry(ctx, e.ID.String(), e.SpaceID, func(m *entryModel) error {
		m.Title = e.Title
		m.Slug = e.Slug
		m.Data = e.Data
		m.UnpublishAt = e.UnpublishAt
		return nil
	})
}

// TransitionEntry writes the status fields when the stored status is still
// from. The read and the write run under WATCH, so a concurrent writer
// aborts the transaction and the caller sees a conflict.
func (s *Store) TransitionEntry(ctx context.Context, e *entry.Entry, from entry.Status) error {
	return s.mutateEntry(ctx, e.ID.String(), e.SpaceID, func(m *entryModel) error {
		if m.Status != string(from) {
			return entry.ErrConflict
		}
		m.Status = string(e.Status)
		m.PublishedAt = e.PublishedAt
		m.UnpublishAt = e.UnpublishAt
		return nil
	})
}

func (s *Store) mutateEntry(ctx context.Context, entryID, spaceID string, apply func(*entryModel) error) error {
	key := entityKey(prefixEntry, entryID)

	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if isRedisNil(err) {
				return entry.ErrNotFound
			}
			return err
		}

		var m entryModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		if m.SpaceID != spaceID {
			return entry.ErrNotFound
		}
		if err := apply(&m); err != nil {
			return err
		}
		m.UpdatedAt = now()

		out, err := json.Marshal(&m)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			indexEntry(ctx, pipe, &m)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, entry.ErrNotFound), errors.Is(err, entry.ErrConflict):
		return err
	case errors.Is(err, goredis.TxFailedErr):
		return entry.ErrConflict
	default:
		return fmt.Errorf("press/redis: update entry: %w", err)
	}
}

// QueryScheduled returns due scheduled entries across all spaces.
func (s *Store) QueryScheduled(ctx context.Context, t time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweep(ctx, zEntryScheduled, entry.StatusScheduled, t, limit)
}

// QueryExpired returns expired published entries across all spaces.
func (s *Store) QueryExpired(ctx context.Context, t time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweep(ctx, zEntryExpiring, entry.StatusPublished, t, limit)
}

func (s *Store) sweep(ctx context.Context, index string, status entry.Status, t time.Time, limit int) ([]*entry.Entry, error) {
	ids, err := s.zRangeByScoreIDs(ctx, index, math.Inf(-1), scoreFromTime(t))
	if err != nil {
		return nil, fmt.Errorf("press/redis: sweep %s: %w", status, err)
	}

	models, err := loadAll[entryModel](ctx, s, prefixEntry, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: sweep %s: %w", status, err)
	}

	result := make([]*entry.Entry, 0, len(models))
	for _, m := range models {
		if m.Status != string(status) {
			continue
		}
		e, err := fromEntryModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ListEntries returns the entries of a space, newest first.
func (s *Store) ListEntries(ctx context.Context, spaceID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	ids, err := s.rdb.ZRevRange(ctx, zEntrySpace+spaceID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("press/redis: list entries: %w", err)
	}

	models, err := loadAll[entryModel](ctx, s, prefixEntry, ids)
	if err != nil {
		return nil, fmt.Errorf("press/redis: list entries: %w", err)
	}

	result := make([]*entry.Entry, 0, len(models))
	for _, m := range models {
		if opts.CollectionID != "" && m.Collection != opts.CollectionID {
			continue
		}
		if opts.Status != "" && m.Status != string(opts.Status) {
			continue
		}
		e, err := fromEntryModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

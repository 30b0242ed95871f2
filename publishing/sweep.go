package publishing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/tenant"
)

// Sweep names used in logs and metrics.
const (
	SweepPublish   = "publish"
	SweepUnpublish = "unpublish"
)

// PublishScheduled promotes every scheduled entry whose publish time has
// arrived. An entry whose unpublish time has also passed is archived instead,
// without an event since it was never announced.
// A row that fails is logged and skipped; a row another sweep already moved
// is skipped silently. The count covers only rows this call transitioned.
func (m *Machine) PublishScheduled(ctx context.Context) (int, error) {
	return m.sweep(ctx, SweepPublish, m.store.QueryScheduled, func(e *entry.Entry, now time.Time) (entry.Status, event.Kind) {
		if e.Expired(now) {
			return entry.StatusArchived, ""
		}
		return entry.StatusPublished, event.KindPublished
	})
}

// UnpublishScheduled archives every published entry whose unpublish time has
// passed and raises an unpublish event for each.
func (m *Machine) UnpublishScheduled(ctx context.Context) (int, error) {
	return m.sweep(ctx, SweepUnpublish, m.store.QueryExpired, func(*entry.Entry, time.Time) (entry.Status, event.Kind) {
		return entry.StatusArchived, event.KindUnpublished
	})
}

type sweepQuery func(ctx context.Context, now time.Time, limit int) ([]*entry.Entry, error)

type sweepTarget func(e *entry.Entry, now time.Time) (entry.Status, event.Kind)

func (m *Machine) sweep(ctx context.Context, name string, query sweepQuery, target sweepTarget) (int, error) {
	ctx, span := m.tracer.StartSweepSpan(ctx, name)

	now := m.now().UTC()
	rows, err := query(ctx, now, m.batch)
	if err != nil {
		m.tracer.EndSweepSpan(span, 0, 0)
		return 0, fmt.Errorf("press: %s sweep query: %w", name, err)
	}

	var moved, failed int
	for _, e := range rows {
		if ctx.Err() != nil {
			break
		}

		to, kind := target(e, now)
		next := e.Clone()
		if to == entry.StatusPublished && next.PublishedAt == nil {
			next.PublishedAt = &now
		}

		_, err := m.transition(ctx, tenant.ForSweep(e.SpaceID), next, to, kind, "")
		switch {
		case err == nil:
			moved++
		case errors.Is(err, entry.ErrConflict), errors.Is(err, entry.ErrNotFound):
			m.logger.DebugContext(ctx, "sweep skipped entry moved concurrently",
				"sweep", name,
				"space_id", e.SpaceID,
				"entry_id", e.ID,
			)
		default:
			failed++
			m.logger.ErrorContext(ctx, "sweep transition failed",
				"sweep", name,
				"space_id", e.SpaceID,
				"collection", e.CollectionID,
				"entry_id", e.ID,
				"error", err,
			)
		}
	}

	m.metrics.RecordSweep(name, moved, failed)
	m.tracer.EndSweepSpan(span, moved, failed)
	if moved > 0 || failed > 0 {
		m.logger.InfoContext(ctx, "sweep finished",
			"sweep", name,
			"transitioned", moved,
			"failed", failed,
		)
	}

	return moved, nil
}

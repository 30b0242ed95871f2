package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/dlq"
	"github.com/xraph/press/endpoint"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
	"github.com/xraph/press/revision"
	pressstore "github.com/xraph/press/store"
)

// compile-time interface check
var _ pressstore.Store = (*Store)(nil)

// ClaimLease is how long a dequeued delivery stays invisible to other
// workers. A worker that dies mid-attempt releases its rows when it expires.
const ClaimLease = 5 * time.Minute

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("press/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("press/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	_, err := s.pg.NewInsert(toEntryModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: create entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, spaceID string, entryID id.ID) (*entry.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", entryID.String()).
		Where("space_id = $2", spaceID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entry.ErrNotFound
		}
		return nil, fmt.Errorf("press/postgres: get entry: %w", err)
	}
	return fromEntryModel(m)
}

func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("press/postgres: encode entry data: %w", err)
	}
	res, err := s.pg.NewUpdate((*entryModel)(nil)).
		Set("title = $1", e.Title).
		Set("slug = $2", e.Slug).
		Set("data = $3::jsonb", string(data)).
		Set("unpublish_at = $4", e.UnpublishAt).
		Set("updated_at = $5", time.Now().UTC()).
		Where("id = $6", e.ID.String()).
		Where("space_id = $7", e.SpaceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: update entry: %w", err)
	}
	return requireRow(res, entry.ErrNotFound)
}

// TransitionEntry is a compare-and-set on status. When no row matches it
// looks the row up once more to tell a missing entry from a lost race.
func (s *Store) TransitionEntry(ctx context.Context, e *entry.Entry, from entry.Status) error {
	res, err := s.pg.NewUpdate((*entryModel)(nil)).
		Set("status = $1", string(e.Status)).
		Set("published_at = $2", e.PublishedAt).
		Set("unpublish_at = $3", e.UnpublishAt).
		Set("updated_at = $4", time.Now().UTC()).
		Where("id = $5", e.ID.String()).
		Where("space_id = $6", e.SpaceID).
		Where("status = $7", string(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: transition entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	count, err := s.pg.NewSelect((*entryModel)(nil)).
		Where("id = $1", e.ID.String()).
		Where("space_id = $2", e.SpaceID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: transition entry: %w", err)
	}
	if count == 0 {
		return entry.ErrNotFound
	}
	return entry.ErrConflict
}

func (s *Store) QueryScheduled(ctx context.Context, now time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweep(ctx, "published_at", entry.StatusScheduled, now, limit)
}

func (s *Store) QueryExpired(ctx context.Context, now time.Time, limit int) ([]*entry.Entry, error) {
	return s.sweep(ctx, "unpublish_at", entry.StatusPublished, now, limit)
}

func (s *Store) sweep(ctx context.Context, column string, status entry.Status, now time.Time, limit int) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models).
		Where("status = $1", string(status)).
		Where(column+" IS NOT NULL").
		Where(column+" <= $2", now).
		OrderExpr(column + " ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/postgres: sweep %s: %w", status, err)
	}
	return entriesFromModels(models)
}

func (s *Store) ListEntries(ctx context.Context, spaceID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models).Where("space_id = $1", spaceID)

	argIdx := 1
	if opts.CollectionID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("collection = $%d", argIdx), opts.CollectionID)
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/postgres: list entries: %w", err)
	}
	return entriesFromModels(models)
}

func entriesFromModels(models []entryModel) ([]*entry.Entry, error) {
	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Revision Store ====================

func (s *Store) CreateRevision(ctx context.Context, r *revision.Revision) error {
	_, err := s.pg.NewInsert(toRevisionModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: create revision: %w", err)
	}
	return nil
}

func (s *Store) GetRevision(ctx context.Context, spaceID string, revID id.ID) (*revision.Revision, error) {
	m := new(revisionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", revID.String()).
		Where("space_id = $2", spaceID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, revision.ErrNotFound
		}
		return nil, fmt.Errorf("press/postgres: get revision: %w", err)
	}
	return fromRevisionModel(m)
}

func (s *Store) ListRevisions(ctx context.Context, spaceID string, entryID id.ID, opts revision.ListOpts) ([]*revision.Revision, error) {
	var models []revisionModel
	q := s.pg.NewSelect(&models).
		Where("space_id = $1", spaceID).
		Where("entry_id = $2", entryID.String())
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("press/postgres: list revisions: %w", err)
	}

	result := make([]*revision.Revision, len(models))
	for i := range models {
		r, err := fromRevisionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Endpoint Store ====================

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	_, err := s.pg.NewInsert(toEndpointModel(ep)).Exec(ctx)
	return err
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", epID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, endpoint.ErrNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, endpoint.ErrNotFound)
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.pg.NewDelete((*endpointModel)(nil)).
		Where("id = $1", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, endpoint.ErrNotFound)
}

func (s *Store) ListEndpoints(ctx context.Context, spaceID string, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.pg.NewSelect(&models).Where("space_id = $1", spaceID)
	if opts.Enabled != nil {
		q = q.Where("enabled = $2", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return endpointsFromModels(models)
}

func (s *Store) ActiveEndpoints(ctx context.Context, spaceID string) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	if err := s.pg.NewSelect(&models).
		Where("(space_id = $1 OR space_id = '')", spaceID).
		Where("enabled = true").
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return endpointsFromModels(models)
}

func (s *Store) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*endpointModel)(nil)).
		Set("enabled = $1", enabled).
		Set("updated_at = $2", now).
		Where("id = $3", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, endpoint.ErrNotFound)
}

func endpointsFromModels(models []endpointModel) ([]*endpoint.Endpoint, error) {
	result := make([]*endpoint.Endpoint, len(models))
	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = ep
	}
	return result, nil
}

// ==================== Delivery Store ====================

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	_, err := s.pg.NewInsert(toDeliveryModel(d)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: enqueue: %w", err)
	}
	return nil
}

func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}
	models := make([]deliveryModel, len(ds))
	for i, d := range ds {
		models[i] = *toDeliveryModel(d)
	}
	_, err := s.pg.NewInsert(&models).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: enqueue batch: %w", err)
	}
	return nil
}

// Dequeue claims due rows with FOR UPDATE SKIP LOCKED and hides them behind
// a lease, so concurrent pollers on any number of processes never share one.
func (s *Store) Dequeue(ctx context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	err := s.pg.NewRaw(`
		UPDATE press_deliveries
		SET locked_until = $2
		WHERE id IN (
			SELECT id FROM press_deliveries
			WHERE state = 'pending'
			  AND next_attempt_at <= $1
			  AND (locked_until IS NULL OR locked_until < $1)
			ORDER BY next_attempt_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, now, now.Add(ClaimLease), limit).Scan(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("press/postgres: dequeue: %w", err)
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = time.Now().UTC()
	m.LockedUntil = nil
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: update delivery: %w", err)
	}
	return requireRow(res, delivery.ErrNotFound)
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", delID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, delivery.ErrNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) ListByEntry(ctx context.Context, spaceID string, entryID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.pg.NewSelect(&models).
		Where("space_id = $1", spaceID).
		Where("entry_id = $2", entryID.String())
	if opts.State != nil {
		q = q.Where("state = $3", string(*opts.State))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*deliveryModel)(nil)).
		Where("state = $1", string(delivery.StatePending)).
		Count(ctx)
	return count, err
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	_, err := s.pg.NewInsert(toDLQEntryModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: dlq push: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.SpaceID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("space_id = $%d", argIdx), opts.SpaceID)
	}
	if opts.URL != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("url = $%d", argIdx), opts.URL)
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at <= $%d", argIdx), *opts.To)
	}
	if opts.Pending {
		q = q.Where("replayed_at IS NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*dlq.Entry, len(models))
	for i := range models {
		e, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	m := new(dlqEntryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", dlqID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, err
	}
	return fromDLQEntryModel(m)
}

func (s *Store) MarkReplayed(ctx context.Context, dlqID id.ID, t time.Time) error {
	res, err := s.pg.NewUpdate((*dlqEntryModel)(nil)).
		Set("replayed_at = $1", t).
		Set("updated_at = $2", time.Now().UTC()).
		Where("id = $3", dlqID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, dlq.ErrNotFound)
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*dlqEntryModel)(nil)).
		Where("failed_at < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	return s.pg.NewSelect((*dlqEntryModel)(nil)).Count(ctx)
}

// ==================== Audit Store ====================

func (s *Store) WriteAudit(ctx context.Context, r *audit.Record) error {
	_, err := s.pg.NewInsert(toAuditModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("press/postgres: write audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, spaceID string, opts audit.ListOpts) ([]*audit.Record, error) {
	var models []auditModel
	q := s.pg.NewSelect(&models).Where("space_id = $1", spaceID)
	if opts.Resource != "" {
		q = q.Where("resource = $2", opts.Resource)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*audit.Record, len(models))
	for i := range models {
		r, err := fromAuditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

type rowsResult interface {
	RowsAffected() (int64, error)
}

// requireRow maps a write that touched nothing to notFound.
func requireRow(res rowsResult, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

package revision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/audit"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/id"
	"github.com/xraph/press/revision"
	"github.com/xraph/press/store/memory"
	"github.com/xraph/press/tenant"
)

type rejectAll struct{}

func (rejectAll) ValidateEntry(context.Context, string, string, map[string]any) error {
	return errors.New("schema violation: title required")
}

func seed(t *testing.T, store *memory.Store, space string, data map[string]any) *entry.Entry {
	t.Helper()
	e := &entry.Entry{
		ID:           id.NewEntryID(),
		SpaceID:      space,
		CollectionID: "posts",
		Title:        "Hello",
		Status:       entry.StatusDraft,
		Data:         data,
	}
	require.NoError(t, store.CreateEntry(context.Background(), e))
	return e
}

func newService(store *memory.Store, cfg revision.Config) *revision.Service {
	if cfg.Audit == nil {
		cfg.Audit = audit.NewService(store, nil)
	}
	return revision.NewService(store, store, cfg, nil)
}

func TestCreateOnUpdateSnapshotsBefore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(store, revision.Config{Now: func() time.Time { return now }})
	tc := tenant.New("space_1", "user_9")

	e := seed(t, store, "space_1", map[string]any{"body": "v1", "tags": []any{"a"}})

	r, err := svc.CreateOnUpdate(ctx, tc, e, map[string]any{"body": "v2", "tags": []any{"a"}})
	require.NoError(t, err)

	assert.Equal(t, "v1", r.Data()["body"])
	assert.Equal(t, "Hello", r.Snapshot["title"])
	assert.Equal(t, revision.Diff{"body": {From: "v1", To: "v2"}}, r.Diff)
	assert.Equal(t, "user_9", r.CreatedBy)
	assert.Equal(t, now, r.CreatedAt)

	got, err := svc.Get(ctx, tc, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID.String(), got.ID.String())
}

func TestCreateOnUpdateRequiresTenant(t *testing.T) {
	store := memory.New()
	svc := newService(store, revision.Config{})
	e := seed(t, store, "space_1", nil)

	_, err := svc.CreateOnUpdate(context.Background(), tenant.Context{}, e, nil)
	assert.ErrorIs(t, err, tenant.ErrMissing)

	_, err = svc.CreateOnUpdate(context.Background(), tenant.New("space_2", ""), e, nil)
	assert.ErrorIs(t, err, entry.ErrNotFound)
}

func TestRestoreReplacesDataAndAudits(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, revision.Config{})
	tc := tenant.New("space_1", "editor")

	e := seed(t, store, "space_1", map[string]any{"body": "original"})
	r, err := svc.CreateOnUpdate(ctx, tc, e, map[string]any{"body": "edited"})
	require.NoError(t, err)

	e.Data = map[string]any{"body": "edited"}
	require.NoError(t, store.UpdateEntry(ctx, e))

	restored, err := svc.Restore(ctx, tc, e.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", restored.Data["body"])

	stored, err := store.GetEntry(ctx, "space_1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.Data["body"])

	// Restore creates no revision and leaves the existing one untouched.
	revs, err := svc.List(ctx, tc, e.ID, revision.ListOpts{})
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "original", revs[0].Data()["body"])

	records, err := store.ListAudit(ctx, "space_1", audit.ListOpts{Resource: "entry:" + e.ID.String()})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.ActionRestore, records[0].Action)
	assert.Equal(t, "editor", records[0].ActorID)
	assert.Equal(t, r.ID.String(), records[0].Diff["revision_id"])
}

func TestRestoreRejectsOtherEntryRevision(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, revision.Config{})
	tc := tenant.New("space_1", "")

	a := seed(t, store, "space_1", map[string]any{"x": 1})
	b := seed(t, store, "space_1", map[string]any{"x": 2})
	r, err := svc.CreateOnUpdate(ctx, tc, a, map[string]any{"x": 3})
	require.NoError(t, err)

	_, err = svc.Restore(ctx, tc, b.ID, r.ID)
	assert.ErrorIs(t, err, revision.ErrEntryMismatch)
}

func TestRestoreAcrossTenantsIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, revision.Config{})

	e := seed(t, store, "space_1", map[string]any{"x": 1})
	r, err := svc.CreateOnUpdate(ctx, tenant.New("space_1", ""), e, map[string]any{"x": 2})
	require.NoError(t, err)

	_, err = svc.Restore(ctx, tenant.New("space_2", ""), e.ID, r.ID)
	assert.ErrorIs(t, err, entry.ErrNotFound)

	_, err = svc.Get(ctx, tenant.New("space_2", ""), r.ID)
	assert.ErrorIs(t, err, revision.ErrNotFound)
}

func TestRestoreValidatesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, revision.Config{Validator: rejectAll{}})
	tc := tenant.New("space_1", "")

	e := seed(t, store, "space_1", map[string]any{"body": "old"})
	r, err := svc.CreateOnUpdate(ctx, tc, e, map[string]any{"body": "new"})
	require.NoError(t, err)

	e.Data = map[string]any{"body": "new"}
	require.NoError(t, store.UpdateEntry(ctx, e))

	_, err = svc.Restore(ctx, tc, e.ID, r.ID)
	require.Error(t, err)

	stored, _ := store.GetEntry(ctx, "space_1", e.ID)
	assert.Equal(t, "new", stored.Data["body"], "rejected restore must not write")
}

func TestRevisionDataFallsBackToSnapshot(t *testing.T) {
	r := &revision.Revision{Snapshot: map[string]any{"data": "not a map", "k": "v"}}
	assert.Equal(t, "v", r.Data()["k"])

	assert.Empty(t, (&revision.Revision{}).Data())
}

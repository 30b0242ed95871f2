package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Press store.
// It can be registered with another grove orchestrator to share locking and
// version tracking with the host application.
var Migrations = migrate.NewGroup("press")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_press_entries",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS press_entries (
    id              TEXT PRIMARY KEY,
    space_id        TEXT NOT NULL,
    collection      TEXT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    slug            TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'draft',
    published_at    TIMESTAMPTZ,
    unpublish_at    TIMESTAMPTZ,
    data            JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_press_entries_space ON press_entries (space_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_press_entries_scheduled ON press_entries (published_at)
    WHERE status = 'scheduled';
CREATE INDEX IF NOT EXISTS idx_press_entries_expiring ON press_entries (unpublish_at)
    WHERE status = 'published' AND unpublish_at IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS press_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_press_revisions",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS press_revisions (
    id              TEXT PRIMARY KEY,
    space_id        TEXT NOT NULL,
    entry_id        TEXT NOT NULL,
    snapshot        JSONB NOT NULL DEFAULT '{}',
    diff            JSONB NOT NULL DEFAULT '{}',
    created_by      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_press_revisions_entry ON press_revisions (space_id, entry_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS press_revisions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_press_endpoints",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS press_endpoints (
    id              TEXT PRIMARY KEY,
    space_id        TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    secret          TEXT NOT NULL DEFAULT '',
    collections     TEXT[] NOT NULL DEFAULT '{}',
    events          TEXT[] NOT NULL DEFAULT '{}',
    enabled         BOOLEAN NOT NULL DEFAULT TRUE,
    rate_limit      INT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_press_endpoints_space ON press_endpoints (space_id) WHERE enabled;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS press_endpoints`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_press_deliveries",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS press_deliveries (
    id               TEXT PRIMARY KEY,
    space_id         TEXT NOT NULL,
    collection       TEXT NOT NULL,
    entry_id         TEXT NOT NULL,
    endpoint_id      TEXT NOT NULL DEFAULT '',
    event            TEXT NOT NULL,
    url              TEXT NOT NULL,
    payload          JSONB NOT NULL,
    secret           TEXT NOT NULL DEFAULT '',
    rate_limit       INT NOT NULL DEFAULT 0,
    idempotency_key  TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'pending',
    attempt_count    INT NOT NULL DEFAULT 0,
    max_attempts     INT NOT NULL DEFAULT 3,
    next_attempt_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_error       TEXT NOT NULL DEFAULT '',
    last_status_code INT NOT NULL DEFAULT 0,
    last_response    TEXT NOT NULL DEFAULT '',
    last_latency_ms  INT NOT NULL DEFAULT 0,
    completed_at     TIMESTAMPTZ,
    locked_until     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_press_deliveries_pending ON press_deliveries (next_attempt_at)
    WHERE state = 'pending';
CREATE INDEX IF NOT EXISTS idx_press_deliveries_entry ON press_deliveries (space_id, entry_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS press_deliveries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_press_dlq",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS press_dlq (
    id               TEXT PRIMARY KEY,
    delivery_id      TEXT NOT NULL DEFAULT '',
    space_id         TEXT NOT NULL,
    collection       TEXT NOT NULL DEFAULT '',
    entry_id         TEXT NOT NULL DEFAULT '',
    endpoint_id      TEXT NOT NULL DEFAULT '',
    event            TEXT NOT NULL,
    url              TEXT NOT NULL,
    payload          JSONB NOT NULL,
    secret           TEXT NOT NULL DEFAULT '',
    idempotency_key  TEXT NOT NULL,
    error            TEXT NOT NULL DEFAULT '',
    attempt_count    INT NOT NULL DEFAULT 0,
    last_status_code INT NOT NULL DEFAULT 0,
    failed_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    replayed_at      TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_press_dlq_space ON press_dlq (space_id, failed_at DESC);
CREATE INDEX IF NOT EXISTS idx_press_dlq_failed ON press_dlq (failed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS press_dlq`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_press_audit",
			Version: "20260301000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS press_audit (
    id          TEXT PRIMARY KEY,
    space_id    TEXT NOT NULL,
    actor_id    TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    resource    TEXT NOT NULL,
    diff        JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_press_audit_resource ON press_audit (space_id, resource, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS press_audit`)
				return err
			},
		},
	)
}

package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Press store (SQLite).
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
    published_at    TEXT,
    unpublish_at    TEXT,
    data            TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_press_entries_space ON press_entries (space_id, created_at);
CREATE INDEX IF NOT EXISTS idx_press_entries_status ON press_entries (status, published_at);
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
    snapshot        TEXT NOT NULL DEFAULT '{}',
    diff            TEXT NOT NULL DEFAULT '{}',
    created_by      TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_press_revisions_entry ON press_revisions (space_id, entry_id, created_at);
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
    collections     TEXT NOT NULL DEFAULT '[]',
    events          TEXT NOT NULL DEFAULT '[]',
    enabled         INTEGER NOT NULL DEFAULT 1,
    rate_limit      INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_press_endpoints_space ON press_endpoints (space_id, enabled);
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
    payload          TEXT NOT NULL,
    secret           TEXT NOT NULL DEFAULT '',
    rate_limit       INTEGER NOT NULL DEFAULT 0,
    idempotency_key  TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'pending',
    attempt_count    INTEGER NOT NULL DEFAULT 0,
    max_attempts     INTEGER NOT NULL DEFAULT 3,
    next_attempt_at  TEXT NOT NULL DEFAULT (datetime('now')),
    last_error       TEXT NOT NULL DEFAULT '',
    last_status_code INTEGER NOT NULL DEFAULT 0,
    last_response    TEXT NOT NULL DEFAULT '',
    last_latency_ms  INTEGER NOT NULL DEFAULT 0,
    completed_at     TEXT,
    locked_until     TEXT,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_press_deliveries_pending ON press_deliveries (state, next_attempt_at);
CREATE INDEX IF NOT EXISTS idx_press_deliveries_entry ON press_deliveries (space_id, entry_id);
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
    payload          TEXT NOT NULL,
    secret           TEXT NOT NULL DEFAULT '',
    idempotency_key  TEXT NOT NULL,
    error            TEXT NOT NULL DEFAULT '',
    attempt_count    INTEGER NOT NULL DEFAULT 0,
    last_status_code INTEGER NOT NULL DEFAULT 0,
    failed_at        TEXT NOT NULL DEFAULT (datetime('now')),
    replayed_at      TEXT,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_press_dlq_space ON press_dlq (space_id);
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
    diff        TEXT,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_press_audit_resource ON press_audit (space_id, resource);
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

package store

import "context"

// triggerSchema is the wire-stable layout for triggers.sqlite3:
// triggers(name, description, mode, check_method, check_interval, state) and
// watchers(name, targetjid, triggername, triggeronaction,
// triggeroffaction, state).
const triggerSchema = `
CREATE TABLE IF NOT EXISTS triggers (
	name           TEXT PRIMARY KEY,
	description    TEXT NOT NULL DEFAULT '',
	mode           INTEGER NOT NULL DEFAULT 0,
	check_method   TEXT NOT NULL DEFAULT '',
	check_interval INTEGER NOT NULL DEFAULT -1,
	state          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS watchers (
	name              TEXT PRIMARY KEY,
	targetjid         TEXT NOT NULL,
	triggername       TEXT NOT NULL,
	triggeronaction   TEXT NOT NULL DEFAULT '',
	triggeroffaction  TEXT NOT NULL DEFAULT '',
	state             INTEGER NOT NULL DEFAULT 0
);
`

// permissionSchema is the wire-stable layout for this agent's own per-VM
// grant table, kept in its own file (filename given by config) rather than
// alongside triggers/watchers.
const permissionSchema = `
CREATE TABLE IF NOT EXISTS permissions (
	subject     TEXT NOT NULL,
	action      TEXT NOT NULL,
	granted     BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (subject, action)
);
`

// MigrateTriggerStore creates the trigger/watcher tables if they don't
// already exist. Unlike the migration-tracked schema some stores use, this
// agent's schema is small and additive enough that a single idempotent DDL
// batch run at startup is sufficient; there is no schema_migrations table
// to maintain.
func MigrateTriggerStore(ctx context.Context, qi *QueryInterceptor) error {
	_, err := qi.ExecContext(ctx, triggerSchema)
	return err
}

// MigratePermissionStore creates the permissions table if it doesn't
// already exist.
func MigratePermissionStore(ctx context.Context, qi *QueryInterceptor) error {
	_, err := qi.ExecContext(ctx, permissionSchema)
	return err
}

// Package persistence provides a SQLite-backed implementation of the
// Thing Registry's Repository, following the same raw-*sql.DB idiom as
// internal/rules/infrastructure/persistence: one grouped row per Thing
// plus a child table for its per-StateType current values, per spec.md
// §6 "Persistent state layout" ("one grouped record per Thing ...
// writes are atomic at the group level").
package persistence

import (
	"context"
	"database/sql"
)

// Schema creates every table the Thing Registry's repository needs if it
// does not already exist.
const Schema = `
CREATE TABLE IF NOT EXISTS things (
	id TEXT PRIMARY KEY,
	thing_class_id TEXT NOT NULL,
	plugin_id TEXT NOT NULL,
	name TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '{}',
	settings TEXT NOT NULL DEFAULT '{}',
	parent_id TEXT,
	setup_status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_things_parent_id ON things(parent_id);
CREATE INDEX IF NOT EXISTS idx_things_thing_class_id ON things(thing_class_id);

CREATE TABLE IF NOT EXISTS thing_states (
	thing_id TEXT NOT NULL REFERENCES things(id) ON DELETE CASCADE,
	state_type_id TEXT NOT NULL,
	value_json TEXT NOT NULL,
	changed_at TEXT NOT NULL,
	PRIMARY KEY (thing_id, state_type_id)
);
`

// InitSchema applies Schema to db.
func InitSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

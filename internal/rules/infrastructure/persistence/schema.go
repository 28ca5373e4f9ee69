// Package persistence provides SQLite-backed implementations of the Rule
// Engine's repositories, following SPEC_FULL.md §11's normalized schema:
// a rules row plus a recursive rule_evaluators table, rather than the
// teacher's single-JSON-blob-per-rule sqlite_rule_repo.go, since the
// StateEvaluator tree can be arbitrarily deep.
package persistence

import (
	"context"
	"database/sql"
)

// Schema creates every table the Rule Engine's repositories need if it
// does not already exist, mirroring the teacher's inline-DDL test setup
// for production use.
const Schema = `
CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	executable INTEGER NOT NULL DEFAULT 1,
	active INTEGER NOT NULL DEFAULT 0,
	events TEXT NOT NULL DEFAULT '[]',
	time_descriptor TEXT,
	actions TEXT NOT NULL DEFAULT '[]',
	exit_actions TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_evaluators (
	id TEXT PRIMARY KEY,
	rule_id TEXT NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
	parent_id TEXT REFERENCES rule_evaluators(id) ON DELETE CASCADE,
	sort_order INTEGER NOT NULL DEFAULT 0,
	operator TEXT NOT NULL,
	thing_id TEXT,
	interface_name TEXT,
	state_type_id TEXT,
	comparison_operator TEXT,
	value_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_rule_evaluators_rule_id ON rule_evaluators(rule_id);
CREATE INDEX IF NOT EXISTS idx_rule_evaluators_parent_id ON rule_evaluators(parent_id);

CREATE TABLE IF NOT EXISTS rule_executions (
	id TEXT PRIMARY KEY,
	rule_id TEXT NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
	cause TEXT NOT NULL,
	status TEXT NOT NULL,
	actions_executed TEXT NOT NULL DEFAULT '[]',
	skip_reason TEXT,
	error_message TEXT,
	started_at TEXT NOT NULL,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_rule_executions_rule_id ON rule_executions(rule_id, started_at DESC);

CREATE TABLE IF NOT EXISTS pending_actions (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES rule_executions(id) ON DELETE CASCADE,
	rule_id TEXT NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
	thing_id TEXT NOT NULL,
	action_type_id TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	executed_at TEXT,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_actions_rule_id ON pending_actions(rule_id);
`

// InitSchema applies Schema to db.
func InitSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

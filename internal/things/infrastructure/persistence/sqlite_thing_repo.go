package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nymea-go/thingd/internal/things"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// SQLiteThingRepository implements things.Repository, following the same
// raw-*sql.DB, manual-uuid-conversion idiom as
// internal/rules/infrastructure/persistence.SQLiteRuleRepository: a
// things row plus a child thing_states table (states are a map keyed by
// StateTypeID, unbounded in principle, so they get their own rows rather
// than a JSON blob column).
type SQLiteThingRepository struct {
	db *sql.DB
}

// NewSQLiteThingRepository constructs a repository over an already
// schema-initialized database handle.
func NewSQLiteThingRepository(db *sql.DB) *SQLiteThingRepository {
	return &SQLiteThingRepository{db: db}
}

func (r *SQLiteThingRepository) Create(ctx context.Context, t *things.Thing) error {
	if err := r.upsertRow(ctx, t, t.CreatedAt(), t.UpdatedAt(), true); err != nil {
		return err
	}
	return r.replaceStates(ctx, t)
}

func (r *SQLiteThingRepository) Update(ctx context.Context, t *things.Thing) error {
	if err := r.upsertRow(ctx, t, time.Time{}, t.UpdatedAt(), false); err != nil {
		return err
	}
	return r.replaceStates(ctx, t)
}

func (r *SQLiteThingRepository) upsertRow(ctx context.Context, t *things.Thing, createdAt, updatedAt time.Time, insert bool) error {
	params, err := marshalValues(t.Params())
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	settings, err := marshalValues(t.Settings())
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	var parentID *string
	if p := t.ParentID(); p != nil {
		s := p.String()
		parentID = &s
	}

	if !insert {
		_, err = r.db.ExecContext(ctx, `
			UPDATE things SET thing_class_id = ?, plugin_id = ?, name = ?, params = ?, settings = ?,
				parent_id = ?, setup_status = ?, updated_at = ?
			WHERE id = ?`,
			t.ThingClassID().String(), t.PluginID().String(), t.Name(), params, settings,
			parentID, string(t.SetupStatus()), updatedAt.Format(time.RFC3339Nano),
			t.ID().String(),
		)
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO things (id, thing_class_id, plugin_id, name, params, settings, parent_id, setup_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID().String(), t.ThingClassID().String(), t.PluginID().String(), t.Name(), params, settings,
		parentID, string(t.SetupStatus()), createdAt.Format(time.RFC3339Nano), updatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (r *SQLiteThingRepository) replaceStates(ctx context.Context, t *things.Thing) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM thing_states WHERE thing_id = ?`, t.ID().String()); err != nil {
		return err
	}
	for stateTypeID, sv := range t.States() {
		b, err := sv.Value.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal state value: %w", err)
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO thing_states (thing_id, state_type_id, value_json, changed_at)
			VALUES (?, ?, ?, ?)`,
			t.ID().String(), stateTypeID.String(), string(b), sv.ChangedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteThingRepository) Delete(ctx context.Context, id ids.ThingID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM things WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: thing %s", corerr.ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteThingRepository) GetByID(ctx context.Context, id ids.ThingID) (*things.Thing, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, thing_class_id, plugin_id, name, params, settings, parent_id, setup_status, created_at, updated_at
		FROM things WHERE id = ?`, id.String())
	t, err := r.scanThing(ctx, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: thing %s", corerr.ErrNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (r *SQLiteThingRepository) GetByParent(ctx context.Context, parentID ids.ThingID) ([]*things.Thing, error) {
	return r.queryThings(ctx, `
		SELECT id, thing_class_id, plugin_id, name, params, settings, parent_id, setup_status, created_at, updated_at
		FROM things WHERE parent_id = ? ORDER BY created_at`, parentID.String())
}

func (r *SQLiteThingRepository) GetByThingClassID(ctx context.Context, thingClassID ids.ThingClassID) ([]*things.Thing, error) {
	return r.queryThings(ctx, `
		SELECT id, thing_class_id, plugin_id, name, params, settings, parent_id, setup_status, created_at, updated_at
		FROM things WHERE thing_class_id = ? ORDER BY created_at`, thingClassID.String())
}

// List applies Filter.ThingClassID/ParentID/Limit/Offset at the SQL
// layer. Filter.Interface is left unfiltered here: resolving a thing
// class's interfaces needs the Type Catalogue, which this repository has
// no handle on, matching things.Registry.FindByInterface's own pattern
// of filtering in Go over catalogue-resolved classes rather than pushing
// interface membership into SQL.
func (r *SQLiteThingRepository) List(ctx context.Context, filter things.Filter) ([]*things.Thing, error) {
	query := `SELECT id, thing_class_id, plugin_id, name, params, settings, parent_id, setup_status, created_at, updated_at FROM things`
	var conds []string
	var args []any
	if filter.ThingClassID != nil {
		conds = append(conds, "thing_class_id = ?")
		args = append(args, filter.ThingClassID.String())
	}
	if filter.ParentID != nil {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID.String())
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}
	return r.queryThings(ctx, query, args...)
}

func (r *SQLiteThingRepository) All(ctx context.Context) ([]*things.Thing, error) {
	return r.queryThings(ctx, `
		SELECT id, thing_class_id, plugin_id, name, params, settings, parent_id, setup_status, created_at, updated_at
		FROM things ORDER BY created_at`)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, matching
// internal/rules/infrastructure/persistence's scanRule idiom.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteThingRepository) scanThing(ctx context.Context, row rowScanner) (*things.Thing, error) {
	var (
		idStr, classIDStr, pluginIDStr, name string
		paramsJSON, settingsJSON, status      string
		parentIDStr                          sql.NullString
		createdAtStr, updatedAtStr            string
	)
	if err := row.Scan(&idStr, &classIDStr, &pluginIDStr, &name, &paramsJSON, &settingsJSON,
		&parentIDStr, &status, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	id, err := ids.ParseThingID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse thing id: %w", err)
	}
	classID, err := ids.ParseThingClassID(classIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse thing class id: %w", err)
	}
	pluginID, err := ids.ParsePluginID(pluginIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse plugin id: %w", err)
	}
	params, err := unmarshalValues(paramsJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	settings, err := unmarshalValues(settingsJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	var parentID *ids.ThingID
	if parentIDStr.Valid {
		p, err := ids.ParseThingID(parentIDStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse parent id: %w", err)
		}
		parentID = &p
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	states, err := r.loadStates(ctx, id)
	if err != nil {
		return nil, err
	}

	return things.Rehydrate(id, classID, pluginID, name, params, settings, states,
		parentID, things.SetupStatus(status), createdAt, updatedAt), nil
}

func (r *SQLiteThingRepository) loadStates(ctx context.Context, thingID ids.ThingID) (map[ids.StateTypeID]things.StateValue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state_type_id, value_json, changed_at FROM thing_states WHERE thing_id = ?`, thingID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[ids.StateTypeID]things.StateValue)
	for rows.Next() {
		var stateTypeIDStr, valueJSON, changedAtStr string
		if err := rows.Scan(&stateTypeIDStr, &valueJSON, &changedAtStr); err != nil {
			return nil, err
		}
		stateTypeID, err := parseStateTypeID(stateTypeIDStr)
		if err != nil {
			return nil, fmt.Errorf("parse state type id: %w", err)
		}
		var v values.Value
		if err := v.UnmarshalJSON([]byte(valueJSON)); err != nil {
			return nil, fmt.Errorf("unmarshal state value: %w", err)
		}
		changedAt, err := time.Parse(time.RFC3339Nano, changedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parse changed_at: %w", err)
		}
		states[stateTypeID] = things.StateValue{StateTypeID: stateTypeID, Value: v, ChangedAt: changedAt}
	}
	return states, rows.Err()
}

func (r *SQLiteThingRepository) queryThings(ctx context.Context, query string, args ...any) ([]*things.Thing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*things.Thing
	for rows.Next() {
		t, err := r.scanThing(ctx, rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

// SQLiteRuleRepository implements domain.RuleRepository, following the
// teacher's raw-*sql.DB, manual-uuid-conversion idiom
// (internal/automations/infrastructure/persistence/sqlite_rule_repo.go),
// with one deliberate deviation: the recursive StateEvaluator tree is
// stored in its own rule_evaluators table instead of a JSON blob, since
// it can nest arbitrarily deep.
type SQLiteRuleRepository struct {
	db *sql.DB
}

func NewSQLiteRuleRepository(db *sql.DB) *SQLiteRuleRepository {
	return &SQLiteRuleRepository{db: db}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRuleRepository) Create(ctx context.Context, rule *domain.Rule) error {
	now := time.Now().UTC()
	if err := r.upsertRow(ctx, rule, now, now); err != nil {
		return err
	}
	return r.replaceEvaluatorTree(ctx, rule.ID, rule.StateEvaluator)
}

func (r *SQLiteRuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	if err := r.upsertRow(ctx, rule, time.Time{}, time.Now().UTC()); err != nil {
		return err
	}
	return r.replaceEvaluatorTree(ctx, rule.ID, rule.StateEvaluator)
}

func (r *SQLiteRuleRepository) upsertRow(ctx context.Context, rule *domain.Rule, createdAt, updatedAt time.Time) error {
	events, err := marshalEvents(rule.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	actions, err := marshalActions(rule.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	exitActions, err := marshalActions(rule.ExitActions)
	if err != nil {
		return fmt.Errorf("marshal exit actions: %w", err)
	}
	timeDescriptor, err := marshalTimeDescriptor(rule.TimeDescriptor)
	if err != nil {
		return fmt.Errorf("marshal time descriptor: %w", err)
	}

	if createdAt.IsZero() {
		_, err = r.db.ExecContext(ctx, `
			UPDATE rules SET name = ?, enabled = ?, executable = ?, active = ?,
				events = ?, time_descriptor = ?, actions = ?, exit_actions = ?, updated_at = ?
			WHERE id = ?`,
			rule.Name, boolToInt(rule.Enabled), boolToInt(rule.Executable), boolToInt(rule.Active),
			events, timeDescriptor, actions, exitActions, updatedAt.Format(time.RFC3339Nano),
			rule.ID.String(),
		)
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, enabled, executable, active, events, time_descriptor, actions, exit_actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.Name, boolToInt(rule.Enabled), boolToInt(rule.Executable), boolToInt(rule.Active),
		events, timeDescriptor, actions, exitActions,
		createdAt.Format(time.RFC3339Nano), updatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (r *SQLiteRuleRepository) Delete(ctx context.Context, id ids.RuleID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (r *SQLiteRuleRepository) GetByID(ctx context.Context, id ids.RuleID) (*domain.Rule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, enabled, executable, active, events, time_descriptor, actions, exit_actions
		FROM rules WHERE id = ?`, id.String())
	rule, err := r.scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}
	tree, err := r.loadEvaluatorTree(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	rule.StateEvaluator = tree
	return rule, nil
}

func (r *SQLiteRuleRepository) List(ctx context.Context, filter domain.RuleFilter) ([]*domain.Rule, error) {
	query := `SELECT id, name, enabled, executable, active, events, time_descriptor, actions, exit_actions FROM rules`
	var args []any
	if filter.Enabled != nil {
		query += ` WHERE enabled = ?`
		args = append(args, boolToInt(*filter.Enabled))
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}
	return r.queryRules(ctx, query, args...)
}

func (r *SQLiteRuleRepository) All(ctx context.Context) ([]*domain.Rule, error) {
	return r.queryRules(ctx, `SELECT id, name, enabled, executable, active, events, time_descriptor, actions, exit_actions FROM rules ORDER BY created_at`)
}

func (r *SQLiteRuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rule := range rules {
		tree, err := r.loadEvaluatorTree(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		rule.StateEvaluator = tree
	}
	return rules, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting
// scanRule serve GetByID and the list queries alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRuleRepository) scanRule(row rowScanner) (*domain.Rule, error) {
	var (
		idStr, name                       string
		enabled, executable, active       int
		eventsJSON, actionsJSON, exitJSON string
		timeDescriptorJSON                sql.NullString
	)
	if err := row.Scan(&idStr, &name, &enabled, &executable, &active, &eventsJSON, &timeDescriptorJSON, &actionsJSON, &exitJSON); err != nil {
		return nil, err
	}

	ruleID, err := ids.ParseRuleID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse rule id: %w", err)
	}
	events, err := unmarshalEvents(eventsJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	actions, err := unmarshalActions(actionsJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	exitActions, err := unmarshalActions(exitJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal exit actions: %w", err)
	}
	var tdPtr *string
	if timeDescriptorJSON.Valid {
		tdPtr = &timeDescriptorJSON.String
	}
	timeDescriptor, err := unmarshalTimeDescriptor(tdPtr)
	if err != nil {
		return nil, fmt.Errorf("unmarshal time descriptor: %w", err)
	}

	return &domain.Rule{
		ID:             ruleID,
		Name:           name,
		Enabled:        enabled != 0,
		Executable:     executable != 0,
		Active:         active != 0,
		Events:         events,
		TimeDescriptor: timeDescriptor,
		Actions:        actions,
		ExitActions:    exitActions,
	}, nil
}

// EnabledReferencingThing loads every enabled rule and filters in Go
// rather than matching thingID inside the events/actions JSON blobs with
// a fragile SQL LIKE scan: rule counts are modest (spec.md targets a
// single-home controller, not a multi-tenant fleet), and this keeps the
// matching logic identical to prune.go's traversal.
func (r *SQLiteRuleRepository) EnabledReferencingThing(ctx context.Context, thingID ids.ThingID) ([]*domain.Rule, error) {
	enabled := true
	rules, err := r.List(ctx, domain.RuleFilter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}

	var matching []*domain.Rule
	for _, rule := range rules {
		if ruleReferencesThing(rule, thingID) {
			matching = append(matching, rule)
		}
	}
	return matching, nil
}

func ruleReferencesThing(rule *domain.Rule, thingID ids.ThingID) bool {
	for _, e := range rule.Events {
		if e.ThingID != nil && *e.ThingID == thingID {
			return true
		}
	}
	for _, a := range append(append([]domain.RuleAction{}, rule.Actions...), rule.ExitActions...) {
		if a.ThingID != nil && *a.ThingID == thingID {
			return true
		}
		if referencesThingParam(a, thingID) {
			return true
		}
	}
	return stateEvaluatorReferencesThing(rule.StateEvaluator, thingID)
}

func stateEvaluatorReferencesThing(e *domain.StateEvaluator, thingID ids.ThingID) bool {
	if e == nil {
		return false
	}
	if e.IsLeaf() {
		return e.StateDescriptor.ThingID != nil && *e.StateDescriptor.ThingID == thingID
	}
	for i := range e.Children {
		if stateEvaluatorReferencesThing(&e.Children[i], thingID) {
			return true
		}
	}
	return false
}

// replaceEvaluatorTree discards any rows the rule's previous
// StateEvaluator left in rule_evaluators and inserts root afresh; simpler
// and cheap enough at this scale than diffing the tree node by node.
func (r *SQLiteRuleRepository) replaceEvaluatorTree(ctx context.Context, ruleID ids.RuleID, root *domain.StateEvaluator) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rule_evaluators WHERE rule_id = ?`, ruleID.String()); err != nil {
		return err
	}
	if root == nil {
		return nil
	}
	_, err := r.insertEvaluatorNode(ctx, ruleID, *root, nil, 0)
	return err
}

func (r *SQLiteRuleRepository) insertEvaluatorNode(ctx context.Context, ruleID ids.RuleID, node domain.StateEvaluator, parentID *string, order int) (string, error) {
	id := node.ID
	if id.UUID == uuid.Nil {
		id = ids.NewStateEvaluatorID()
	}

	var thingID, interfaceName, stateTypeID, comparisonOperator *string
	var valueJSON *string
	operator := string(node.Operator)

	if node.IsLeaf() {
		d := node.StateDescriptor
		if d.ThingID != nil {
			s := d.ThingID.String()
			thingID = &s
		}
		if d.InterfaceName != "" {
			interfaceName = &d.InterfaceName
		}
		s := d.StateTypeID.String()
		stateTypeID = &s
		op := string(d.Operator)
		comparisonOperator = &op
		b, err := d.Value.MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("marshal state descriptor value: %w", err)
		}
		s2 := string(b)
		valueJSON = &s2
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rule_evaluators (id, rule_id, parent_id, sort_order, operator, thing_id, interface_name, state_type_id, comparison_operator, value_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), ruleID.String(), parentID, order, operator,
		thingID, interfaceName, stateTypeID, comparisonOperator, valueJSON,
	)
	if err != nil {
		return "", err
	}

	idStr := id.String()
	for i, child := range node.Children {
		if _, err := r.insertEvaluatorNode(ctx, ruleID, child, &idStr, i); err != nil {
			return "", err
		}
	}
	return idStr, nil
}

type evaluatorRow struct {
	id         string
	sortOrder  int
	operator   string
	thingID    sql.NullString
	interfaceName sql.NullString
	stateTypeID sql.NullString
	comparisonOperator sql.NullString
	valueJSON  sql.NullString
}

func (r *SQLiteRuleRepository) loadEvaluatorTree(ctx context.Context, ruleID ids.RuleID) (*domain.StateEvaluator, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parent_id, sort_order, operator, thing_id, interface_name, state_type_id, comparison_operator, value_json
		FROM rule_evaluators WHERE rule_id = ? ORDER BY sort_order`, ruleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*evaluatorRow)
	childrenOf := make(map[string][]string)
	var rootID string

	for rows.Next() {
		var row evaluatorRow
		var parentID sql.NullString
		if err := rows.Scan(&row.id, &parentID, &row.sortOrder, &row.operator,
			&row.thingID, &row.interfaceName, &row.stateTypeID, &row.comparisonOperator, &row.valueJSON); err != nil {
			return nil, err
		}
		if parentID.Valid {
			childrenOf[parentID.String] = append(childrenOf[parentID.String], row.id)
		} else {
			rootID = row.id
		}
		byID[row.id] = &row
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if rootID == "" {
		return nil, nil
	}

	return buildEvaluatorNode(rootID, byID, childrenOf)
}

func buildEvaluatorNode(id string, byID map[string]*evaluatorRow, childrenOf map[string][]string) (*domain.StateEvaluator, error) {
	row, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("rule_evaluators row %s missing", id)
	}

	evaluatorID, err := parseStateEvaluatorID(row.id)
	if err != nil {
		return nil, err
	}
	node := &domain.StateEvaluator{ID: evaluatorID, Operator: domain.BooleanOperator(row.operator)}

	childIDs := childrenOf[id]
	if len(childIDs) == 0 && row.stateTypeID.Valid {
		descriptor, err := buildStateDescriptor(row)
		if err != nil {
			return nil, err
		}
		node.StateDescriptor = descriptor
		return node, nil
	}

	for _, childID := range childIDs {
		child, err := buildEvaluatorNode(childID, byID, childrenOf)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, *child)
	}
	return node, nil
}

func buildStateDescriptor(row *evaluatorRow) (*domain.StateDescriptor, error) {
	stateTypeID, err := parseStateTypeID(row.stateTypeID.String)
	if err != nil {
		return nil, err
	}
	descriptor := &domain.StateDescriptor{
		StateTypeID: stateTypeID,
		Operator:    domain.ComparisonOperator(row.comparisonOperator.String),
	}
	if row.thingID.Valid {
		thingID, err := ids.ParseThingID(row.thingID.String)
		if err != nil {
			return nil, err
		}
		descriptor.ThingID = &thingID
	}
	if row.interfaceName.Valid {
		descriptor.InterfaceName = row.interfaceName.String
	}
	if row.valueJSON.Valid {
		if err := descriptor.Value.UnmarshalJSON([]byte(row.valueJSON.String)); err != nil {
			return nil, fmt.Errorf("unmarshal state descriptor value: %w", err)
		}
	}
	return descriptor, nil
}

func parseStateEvaluatorID(s string) (ids.StateEvaluatorID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.StateEvaluatorID{}, err
	}
	return ids.StateEvaluatorID{UUID: u}, nil
}

func parseStateTypeID(s string) (ids.StateTypeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.StateTypeID{}, err
	}
	return ids.StateTypeID{UUID: u}, nil
}

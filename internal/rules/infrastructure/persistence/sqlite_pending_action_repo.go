package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

var errPendingActionNotFound = errors.New("pending action not found")

// SQLitePendingActionRepository implements domain.PendingActionRepository.
// PendingAction.Params is map[ids.ParamTypeID]any holding only the
// primitive Go values ActionExecutor.valueAny already reduced
// values.Value to, so a plain json.Marshal/Unmarshal round-trips it
// without needing values.Value's custom wire format.
type SQLitePendingActionRepository struct {
	db *sql.DB
}

func NewSQLitePendingActionRepository(db *sql.DB) *SQLitePendingActionRepository {
	return &SQLitePendingActionRepository{db: db}
}

func (r *SQLitePendingActionRepository) Create(ctx context.Context, action *domain.PendingAction) error {
	params, err := json.Marshal(action.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_actions (id, execution_id, rule_id, thing_id, action_type_id, params, status, executed_at, error_message, retry_count, max_retries, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID.String(), action.ExecutionID.String(), action.RuleID.String(), action.ThingID.String(), action.ActionTypeID.String(),
		string(params), string(action.Status), formatNullableTime(action.ExecutedAt), action.ErrorMessage,
		action.RetryCount, action.MaxRetries, action.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (r *SQLitePendingActionRepository) Update(ctx context.Context, action *domain.PendingAction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_actions SET status = ?, executed_at = ?, error_message = ?, retry_count = ?
		WHERE id = ?`,
		string(action.Status), formatNullableTime(action.ExecutedAt), action.ErrorMessage, action.RetryCount,
		action.ID.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errPendingActionNotFound
	}
	return nil
}

func (r *SQLitePendingActionRepository) GetByID(ctx context.Context, id ids.ReplyID) (*domain.PendingAction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, execution_id, rule_id, thing_id, action_type_id, params, status, executed_at, error_message, retry_count, max_retries, created_at
		FROM pending_actions WHERE id = ?`, id.String())
	action, err := scanPendingAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errPendingActionNotFound
		}
		return nil, err
	}
	return action, nil
}

func (r *SQLitePendingActionRepository) GetByRuleID(ctx context.Context, ruleID ids.RuleID) ([]*domain.PendingAction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, rule_id, thing_id, action_type_id, params, status, executed_at, error_message, retry_count, max_retries, created_at
		FROM pending_actions WHERE rule_id = ? ORDER BY created_at`, ruleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*domain.PendingAction
	for rows.Next() {
		action, err := scanPendingAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (r *SQLitePendingActionRepository) CancelByRuleID(ctx context.Context, ruleID ids.RuleID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pending_actions SET status = ? WHERE rule_id = ? AND status = ?`,
		string(domain.PendingActionStatusCancelled), ruleID.String(), string(domain.PendingActionStatusPending),
	)
	return err
}

func scanPendingAction(row rowScanner) (*domain.PendingAction, error) {
	var (
		idStr, executionIDStr, ruleIDStr, thingIDStr, actionTypeIDStr string
		paramsJSON, status, errorMessage, createdAt                   string
		executedAt                                                    sql.NullString
		retryCount, maxRetries                                        int
	)
	if err := row.Scan(&idStr, &executionIDStr, &ruleIDStr, &thingIDStr, &actionTypeIDStr,
		&paramsJSON, &status, &executedAt, &errorMessage, &retryCount, &maxRetries, &createdAt); err != nil {
		return nil, err
	}

	id, err := parseReplyID(idStr)
	if err != nil {
		return nil, err
	}
	executionID, err := parseRuleExecutionID(executionIDStr)
	if err != nil {
		return nil, err
	}
	ruleID, err := ids.ParseRuleID(ruleIDStr)
	if err != nil {
		return nil, err
	}
	thingID, err := ids.ParseThingID(thingIDStr)
	if err != nil {
		return nil, err
	}
	actionTypeID, err := parseActionTypeID(actionTypeIDStr)
	if err != nil {
		return nil, err
	}

	var params map[ids.ParamTypeID]any
	if paramsJSON != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(paramsJSON), &raw); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
		params = make(map[ids.ParamTypeID]any, len(raw))
		for k, v := range raw {
			paramTypeID, err := parseParamTypeID(k)
			if err != nil {
				return nil, err
			}
			params[paramTypeID] = v
		}
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}

	action := &domain.PendingAction{
		ID:           id,
		ExecutionID:  executionID,
		RuleID:       ruleID,
		ThingID:      thingID,
		ActionTypeID: actionTypeID,
		Params:       params,
		Status:       domain.PendingActionStatus(status),
		ErrorMessage: errorMessage,
		RetryCount:   retryCount,
		MaxRetries:   maxRetries,
		CreatedAt:    created,
	}
	if executedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, executedAt.String)
		if err != nil {
			return nil, err
		}
		action.ExecutedAt = &t
	}
	return action, nil
}

func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

// SQLiteExecutionRepository implements domain.ExecutionRepository.
type SQLiteExecutionRepository struct {
	db *sql.DB
}

func NewSQLiteExecutionRepository(db *sql.DB) *SQLiteExecutionRepository {
	return &SQLiteExecutionRepository{db: db}
}

func (r *SQLiteExecutionRepository) Create(ctx context.Context, execution *domain.RuleExecution) error {
	results, err := json.Marshal(execution.ActionsExecuted)
	if err != nil {
		return fmt.Errorf("marshal actions executed: %w", err)
	}

	var completedAt *string
	if execution.CompletedAt != nil {
		s := execution.CompletedAt.Format(time.RFC3339Nano)
		completedAt = &s
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rule_executions (id, rule_id, cause, status, actions_executed, skip_reason, error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		execution.ID.String(), execution.RuleID.String(), execution.Cause, string(execution.Status),
		string(results), execution.SkipReason, execution.ErrorMessage,
		execution.StartedAt.Format(time.RFC3339Nano), completedAt,
	)
	return err
}

func (r *SQLiteExecutionRepository) GetByRuleID(ctx context.Context, ruleID ids.RuleID, limit int) ([]*domain.RuleExecution, error) {
	query := `
		SELECT id, rule_id, cause, status, actions_executed, skip_reason, error_message, started_at, completed_at
		FROM rule_executions WHERE rule_id = ? ORDER BY started_at DESC`
	args := []any{ruleID.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*domain.RuleExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}

func (r *SQLiteExecutionRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rule_executions WHERE started_at < ?`, before.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanExecution(row rowScanner) (*domain.RuleExecution, error) {
	var (
		idStr, ruleIDStr, cause, status, resultsJSON, skipReason, errorMessage, startedAt string
		completedAt                                                                       sql.NullString
	)
	if err := row.Scan(&idStr, &ruleIDStr, &cause, &status, &resultsJSON, &skipReason, &errorMessage, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	id, err := parseRuleExecutionID(idStr)
	if err != nil {
		return nil, err
	}
	ruleID, err := ids.ParseRuleID(ruleIDStr)
	if err != nil {
		return nil, err
	}
	var results []domain.ActionResult
	if resultsJSON != "" {
		if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
			return nil, fmt.Errorf("unmarshal actions executed: %w", err)
		}
	}
	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, err
	}

	execution := &domain.RuleExecution{
		ID:              id,
		RuleID:          ruleID,
		Cause:           cause,
		Status:          domain.ExecutionStatus(status),
		ActionsExecuted: results,
		SkipReason:      skipReason,
		ErrorMessage:    errorMessage,
		StartedAt:       started,
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, err
		}
		execution.CompletedAt = &t
	}
	return execution, nil
}

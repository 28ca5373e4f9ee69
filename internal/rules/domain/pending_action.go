package domain

import (
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
)

// PendingActionStatus tracks a scheduled action's lifecycle.
type PendingActionStatus string

const (
	PendingActionStatusPending   PendingActionStatus = "pending"
	PendingActionStatusExecuted  PendingActionStatus = "executed"
	PendingActionStatusFailed    PendingActionStatus = "failed"
	PendingActionStatusCancelled PendingActionStatus = "cancelled"
)

// PendingAction is one resolved, not-yet-acknowledged RuleAction
// dispatch: the Dispatcher enqueues it without awaiting PluginHost's
// reply, per spec.md §4.6, and the reply updates its status later.
type PendingAction struct {
	ID          ids.ReplyID
	ExecutionID ids.RuleExecutionID
	RuleID      ids.RuleID

	ThingID      ids.ThingID
	ActionTypeID ids.ActionTypeID
	Params       map[ids.ParamTypeID]any

	Status       PendingActionStatus
	ExecutedAt   *time.Time
	ErrorMessage string

	RetryCount int
	MaxRetries int

	CreatedAt time.Time
}

// NewPendingAction creates a pending action awaiting dispatch.
func NewPendingAction(id ids.ReplyID, executionID ids.RuleExecutionID, ruleID ids.RuleID, thingID ids.ThingID, actionTypeID ids.ActionTypeID, params map[ids.ParamTypeID]any) *PendingAction {
	return &PendingAction{
		ID:           id,
		ExecutionID:  executionID,
		RuleID:       ruleID,
		ThingID:      thingID,
		ActionTypeID: actionTypeID,
		Params:       params,
		Status:       PendingActionStatusPending,
		MaxRetries:   3,
		CreatedAt:    time.Now().UTC(),
	}
}

// Execute marks the action as acknowledged by the plugin.
func (a *PendingAction) Execute() {
	now := time.Now().UTC()
	a.Status = PendingActionStatusExecuted
	a.ExecutedAt = &now
}

// Fail records a failed dispatch, marking the action permanently failed
// once it has exhausted its retries.
func (a *PendingAction) Fail(errMsg string) {
	a.RetryCount++
	a.ErrorMessage = errMsg
	if a.RetryCount >= a.MaxRetries {
		a.Status = PendingActionStatusFailed
	}
}

// Cancel marks the action cancelled, e.g. by Dispatcher shutdown.
func (a *PendingAction) Cancel() {
	a.Status = PendingActionStatusCancelled
}

// CanRetry reports whether a failed dispatch may be retried.
func (a *PendingAction) CanRetry() bool {
	return a.Status != PendingActionStatusCancelled &&
		a.Status != PendingActionStatusExecuted &&
		a.RetryCount < a.MaxRetries
}

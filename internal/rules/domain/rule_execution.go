package domain

import (
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
)

// ExecutionStatus is the outcome of one rule evaluation that produced
// (or failed to produce) actions.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// ActionResult is the outcome of dispatching a single RuleAction.
type ActionResult struct {
	ThingID      string
	ActionTypeID string
	Status       string // success, failed, skipped
	Error        string
}

// RuleExecution records one firing (or attempted firing) of a rule's
// action set, generalized from the teacher's event-triggered
// RuleExecution to also record state-change and time-tick causes.
type RuleExecution struct {
	ID     ids.RuleExecutionID
	RuleID ids.RuleID

	Cause string // "event", "stateChange" or "tick"; exit firings carry the cause of their stream

	Status          ExecutionStatus
	ActionsExecuted []ActionResult
	SkipReason      string
	ErrorMessage    string

	StartedAt   time.Time
	CompletedAt *time.Time
}

// NewRuleExecution starts a new execution record.
func NewRuleExecution(id ids.RuleExecutionID, ruleID ids.RuleID, cause string) *RuleExecution {
	return &RuleExecution{
		ID:        id,
		RuleID:    ruleID,
		Cause:     cause,
		Status:    ExecutionStatusPending,
		StartedAt: time.Now().UTC(),
	}
}

// Complete marks the execution finished, successfully or partially.
func (e *RuleExecution) Complete(status ExecutionStatus, results []ActionResult) {
	now := time.Now().UTC()
	e.Status = status
	e.ActionsExecuted = results
	e.CompletedAt = &now
}

// Skip marks the execution as never having produced actions.
func (e *RuleExecution) Skip(reason string) {
	now := time.Now().UTC()
	e.Status = ExecutionStatusSkipped
	e.SkipReason = reason
	e.CompletedAt = &now
}

// Fail marks the execution as having failed outright (as opposed to
// individual actions within it failing, which Complete's results
// capture per-action).
func (e *RuleExecution) Fail(errMsg string) {
	now := time.Now().UTC()
	e.Status = ExecutionStatusFailed
	e.ErrorMessage = errMsg
	e.CompletedAt = &now
}

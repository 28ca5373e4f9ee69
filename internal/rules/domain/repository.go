package domain

import (
	"context"
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
)

// RuleFilter specifies criteria for filtering rules, generalizing
// automations/domain.RuleFilter by dropping the per-user scope (no
// multi-tenant isolation, spec.md §1) and the trigger-type filter
// (events/state/time are all first-class on every Rule now).
type RuleFilter struct {
	Enabled *bool
	Limit   int
	Offset  int
}

// RuleRepository persists Rules. One grouped record per Rule plus its
// recursive StateEvaluator tree, per SPEC_FULL.md §11's normalized
// rule/rule_evaluators schema.
type RuleRepository interface {
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id ids.RuleID) error
	GetByID(ctx context.Context, id ids.RuleID) (*Rule, error)
	List(ctx context.Context, filter RuleFilter) ([]*Rule, error)
	All(ctx context.Context) ([]*Rule, error)

	// EnabledReferencingThing returns every enabled rule whose
	// StateEvaluator, events, or actions reference thingID, used by
	// PruneThingReferences (things.RuleReferencePruner).
	EnabledReferencingThing(ctx context.Context, thingID ids.ThingID) ([]*Rule, error)
}

// ExecutionRepository persists RuleExecution records.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *RuleExecution) error
	GetByRuleID(ctx context.Context, ruleID ids.RuleID, limit int) ([]*RuleExecution, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// PendingActionRepository persists PendingAction records.
type PendingActionRepository interface {
	Create(ctx context.Context, action *PendingAction) error
	Update(ctx context.Context, action *PendingAction) error
	GetByID(ctx context.Context, id ids.ReplyID) (*PendingAction, error)
	GetByRuleID(ctx context.Context, ruleID ids.RuleID) ([]*PendingAction, error)
	CancelByRuleID(ctx context.Context, ruleID ids.RuleID) error
}

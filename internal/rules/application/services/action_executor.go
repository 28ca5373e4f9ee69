package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// ActionExecutor resolves a Firing's RuleActions into persisted
// PendingActions. Unlike the teacher's ActionExecutor, it never dispatches
// to a handler itself: per spec.md §4.6, calling PluginHost.executeAction
// is the Dispatcher's job, done after it asks the Rule Engine to resolve
// parameters against each target thing's current catalogue and state.
type ActionExecutor struct {
	pendingRepo domain.PendingActionRepository
	resolver    domain.ThingStateResolver
	catalogue   *catalogue.Catalogue
	registry    thingClassLookup
	logger      *slog.Logger
}

// thingClassLookup is the narrow seam ActionExecutor needs to find a
// target thing's ThingClassID, kept separate from ThingStateResolver
// since resolving an action's ActionType requires the thing's class, not
// just its state.
type thingClassLookup interface {
	ThingClassID(thingID ids.ThingID) (ids.ThingClassID, bool)
}

// NewActionExecutor wires an ActionExecutor.
func NewActionExecutor(
	pendingRepo domain.PendingActionRepository,
	resolver domain.ThingStateResolver,
	cat *catalogue.Catalogue,
	registry thingClassLookup,
	logger *slog.Logger,
) *ActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionExecutor{pendingRepo: pendingRepo, resolver: resolver, catalogue: cat, registry: registry, logger: logger}
}

// Resolve turns a Firing into one PendingAction per (action, target thing)
// pair, persisting each and recording per-action outcomes on the
// execution. Unresolvable actions (unknown thing, missing ActionType, bad
// param) are recorded as failed ActionResults rather than aborting the
// whole firing, matching spec.md §4.5's "partial failure of one action
// does not prevent the others from running".
func (e *ActionExecutor) Resolve(ctx context.Context, firing Firing) ([]*domain.PendingAction, []domain.ActionResult, error) {
	var pending []*domain.PendingAction
	var results []domain.ActionResult

	for _, action := range firing.Actions {
		targets := action.Targets(e.resolver)
		if len(targets) == 0 {
			results = append(results, domain.ActionResult{
				ActionTypeID: action.ActionTypeID.String(),
				Status:       "skipped",
				Error:        "no matching target thing",
			})
			continue
		}

		for _, thingID := range targets {
			params, err := e.resolveParams(thingID, action)
			if err != nil {
				results = append(results, domain.ActionResult{
					ThingID:      thingID.String(),
					ActionTypeID: action.ActionTypeID.String(),
					Status:       "failed",
					Error:        err.Error(),
				})
				continue
			}

			pa := domain.NewPendingAction(ids.NewReplyID(), firing.Execution.ID, firing.Rule.ID, thingID, action.ActionTypeID, params)
			if err := e.pendingRepo.Create(ctx, pa); err != nil {
				return pending, results, err
			}
			pending = append(pending, pa)
			results = append(results, domain.ActionResult{
				ThingID:      thingID.String(),
				ActionTypeID: action.ActionTypeID.String(),
				Status:       "success",
			})
		}
	}

	return pending, results, nil
}

func (e *ActionExecutor) resolveParams(thingID ids.ThingID, action domain.RuleAction) (map[ids.ParamTypeID]any, error) {
	thingClassID, ok := e.registry.ThingClassID(thingID)
	if !ok {
		return nil, fmt.Errorf("%w: thing %s", corerr.ErrNotFound, thingID)
	}
	tc, err := e.catalogue.ThingClass(thingClassID)
	if err != nil {
		return nil, err
	}
	at, ok := actionTypeOf(tc, action.ActionTypeID)
	if !ok {
		return nil, fmt.Errorf("%w: action type %s on thing class %s", corerr.ErrNotFound, action.ActionTypeID, thingClassID)
	}

	resolved := make(map[ids.ParamTypeID]any, len(action.Params))
	for _, p := range action.Params {
		pt, err := catalogue.FindParamTypeByID(at.ParamTypes, p.ParamTypeID)
		if err != nil {
			return nil, err
		}
		v, err := p.Resolve(e.resolver, pt)
		if err != nil {
			return nil, err
		}
		resolved[p.ParamTypeID] = valueAny(v)
	}
	return resolved, nil
}

// valueAny extracts the concrete Go value a values.Value wraps, for
// storage in the loosely-typed PendingAction.Params map the plugin wire
// protocol expects.
func valueAny(v values.Value) any {
	switch v.Kind() {
	case values.KindBool:
		b, _ := v.AsBool()
		return b
	case values.KindInt:
		i, _ := v.AsInt()
		return i
	case values.KindUint:
		u, _ := v.AsUint()
		return u
	case values.KindDouble:
		d, _ := v.AsDouble()
		return d
	case values.KindString:
		s, _ := v.AsString()
		return s
	default:
		return v.String()
	}
}

// CancelPendingForRule cancels every still-pending action belonging to a
// rule, used when a rule is disabled or deleted mid-flight.
func (e *ActionExecutor) CancelPendingForRule(ctx context.Context, ruleID ids.RuleID) (int, error) {
	actions, err := e.pendingRepo.GetByRuleID(ctx, ruleID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, action := range actions {
		if action.Status != domain.PendingActionStatusPending {
			continue
		}
		action.Cancel()
		if err := e.pendingRepo.Update(ctx, action); err != nil {
			e.logger.Error("failed to cancel pending action", "action_id", action.ID, "error", err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

package services

import (
	"context"

	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

// PruneThingReferences implements things.RuleReferencePruner, the seam
// the Thing Registry's removeThing calls per spec.md §4.2: with
// cascade=true (policy Cascade) every enabled rule referencing thingID
// is deleted outright; with cascade=false (policy UpdateRules) only the
// fragments referencing thingID are pruned, and a rule left with no
// trigger or no actions afterward is deleted as orphaned. Only enabled
// rules are loaded, so a disabled rule that references thingID is left
// unchanged by either policy.
func (p *RuleProcessor) PruneThingReferences(ctx context.Context, thingID ids.ThingID, cascade bool) error {
	rules, err := p.ruleRepo.EnabledReferencingThing(ctx, thingID)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if cascade {
			p.logger.Info("removing rule referencing removed thing", "rule_id", rule.ID, "thing_id", thingID)
			if err := p.ruleRepo.Delete(ctx, rule.ID); err != nil {
				return err
			}
			continue
		}

		pruneRule(rule, thingID)
		if orphaned(rule) {
			p.logger.Info("deleting orphaned rule after pruning thing references", "rule_id", rule.ID, "thing_id", thingID)
			if err := p.ruleRepo.Delete(ctx, rule.ID); err != nil {
				return err
			}
			continue
		}

		if err := p.ruleRepo.Update(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func pruneRule(rule *domain.Rule, thingID ids.ThingID) {
	rule.Events = pruneEvents(rule.Events, thingID)
	rule.StateEvaluator = pruneStateEvaluator(rule.StateEvaluator, thingID)
	rule.Actions = pruneActions(rule.Actions, thingID)
	rule.ExitActions = pruneActions(rule.ExitActions, thingID)
}

func pruneEvents(events []domain.EventDescriptor, thingID ids.ThingID) []domain.EventDescriptor {
	out := events[:0:0]
	for _, e := range events {
		if e.ThingID != nil && *e.ThingID == thingID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// pruneStateEvaluator removes any leaf referencing thingID, collapsing
// internal nodes left with no children. A nil result means the whole
// evaluator was pruned away.
func pruneStateEvaluator(e *domain.StateEvaluator, thingID ids.ThingID) *domain.StateEvaluator {
	if e == nil {
		return nil
	}
	if e.IsLeaf() {
		if e.StateDescriptor.ThingID != nil && *e.StateDescriptor.ThingID == thingID {
			return nil
		}
		return e
	}

	kept := e.Children[:0:0]
	for i := range e.Children {
		if child := pruneStateEvaluator(&e.Children[i], thingID); child != nil {
			kept = append(kept, *child)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	e.Children = kept
	return e
}

func pruneActions(actions []domain.RuleAction, thingID ids.ThingID) []domain.RuleAction {
	out := actions[:0:0]
	for _, a := range actions {
		if a.ThingID != nil && *a.ThingID == thingID {
			continue
		}
		if referencesThingParam(a, thingID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func referencesThingParam(a domain.RuleAction, thingID ids.ThingID) bool {
	for _, p := range a.Params {
		if p.StateRef != nil && p.StateRef.ThingID == thingID {
			return true
		}
	}
	return false
}

// orphaned reports whether a rule has lost every trigger or every
// action after pruning, and so can no longer do anything useful.
func orphaned(rule *domain.Rule) bool {
	hasTrigger := len(rule.Events) > 0 || rule.StateEvaluator != nil || (rule.TimeDescriptor != nil && !rule.TimeDescriptor.IsEmpty())
	return !hasTrigger || len(rule.Actions) == 0
}

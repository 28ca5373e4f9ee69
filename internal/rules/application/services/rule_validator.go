package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
)

// RuleValidator validates a Rule against the Type Catalogue and Thing
// Registry before it is persisted, mirroring things.Registry.AddThing's
// validate-then-persist shape (internal/things/registry.go): resolve
// every id the caller supplied against the live catalogue, and only then
// hand the rule to the repository. Per spec.md §7/§8's InvalidRule check,
// a rule referencing a thing, event type, state type, action type, or
// param type that does not exist is rejected at add time, not discovered
// the first time the Rule Engine tries to evaluate it.
type RuleValidator struct {
	ruleRepo  domain.RuleRepository
	catalogue *catalogue.Catalogue
	registry  thingClassLookup
	logger    *slog.Logger
}

// NewRuleValidator wires a RuleValidator.
func NewRuleValidator(
	ruleRepo domain.RuleRepository,
	cat *catalogue.Catalogue,
	registry thingClassLookup,
	logger *slog.Logger,
) *RuleValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleValidator{ruleRepo: ruleRepo, catalogue: cat, registry: registry, logger: logger}
}

// AddRule validates rule's trigger tree and action lists, then persists
// it. A failing validation returns corerr.ErrInvalidRule wrapping the
// specific reason; RuleRepository.Create is never called on an invalid
// rule.
func (v *RuleValidator) AddRule(ctx context.Context, rule *domain.Rule) error {
	if err := v.validate(rule); err != nil {
		return fmt.Errorf("%w: %w", corerr.ErrInvalidRule, err)
	}
	v.logger.Debug("rule validated", "rule_id", rule.ID, "name", rule.Name)
	return v.ruleRepo.Create(ctx, rule)
}

// validate runs every IsValid shape check the domain model already
// exposes, then resolves every referenced id against the catalogue and
// registry. Neither half alone is sufficient: IsValid catches malformed
// descriptors (e.g. neither a thingId nor an interfaceName), while
// resolution catches well-formed descriptors that simply point nowhere.
func (v *RuleValidator) validate(rule *domain.Rule) error {
	if len(rule.Events) == 0 && rule.StateEvaluator == nil && rule.TimeDescriptor == nil {
		return fmt.Errorf("rule has no trigger: at least one event, a stateEvaluator, or a timeDescriptor is required")
	}

	for i, d := range rule.Events {
		if err := d.IsValid(); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if err := v.resolveEventDescriptor(d); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	if rule.StateEvaluator != nil {
		if err := rule.StateEvaluator.IsValid(); err != nil {
			return fmt.Errorf("stateEvaluator: %w", err)
		}
		if err := v.resolveStateEvaluator(*rule.StateEvaluator); err != nil {
			return fmt.Errorf("stateEvaluator: %w", err)
		}
	}

	if rule.TimeDescriptor != nil {
		if err := rule.TimeDescriptor.IsValid(); err != nil {
			return fmt.Errorf("timeDescriptor: %w", err)
		}
	}

	for i, a := range rule.Actions {
		if err := v.validateAction(a); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
	}
	for i, a := range rule.ExitActions {
		if err := v.validateAction(a); err != nil {
			return fmt.Errorf("exitActions[%d]: %w", i, err)
		}
	}

	return nil
}

func (v *RuleValidator) validateAction(a domain.RuleAction) error {
	if err := a.IsValid(); err != nil {
		return err
	}
	return v.resolveRuleAction(a)
}

// candidateClasses resolves the ThingClass(es) an EventDescriptor,
// StateDescriptor, or RuleAction can match: a concrete thingID resolves
// to exactly one class through the registry, an interfaceName resolves
// to every class the catalogue currently has registered for it.
func (v *RuleValidator) candidateClasses(thingID *ids.ThingID, interfaceName string) ([]*catalogue.ThingClass, error) {
	if thingID != nil {
		classID, ok := v.registry.ThingClassID(*thingID)
		if !ok {
			return nil, fmt.Errorf("%w: thing %s", corerr.ErrNotFound, *thingID)
		}
		tc, err := v.catalogue.ThingClass(classID)
		if err != nil {
			return nil, err
		}
		return []*catalogue.ThingClass{tc}, nil
	}

	classes := v.catalogue.ThingClassesByInterface(interfaceName)
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no thing class implements interface %q", corerr.ErrNotFound, interfaceName)
	}
	return classes, nil
}

func (v *RuleValidator) resolveEventDescriptor(d domain.EventDescriptor) error {
	classes, err := v.candidateClasses(d.ThingID, d.InterfaceName)
	if err != nil {
		return err
	}

	for _, tc := range classes {
		if et, ok := findEventType(tc, d); ok {
			return v.resolveParamFilters(d.ParamFilters, et.ParamTypes)
		}
	}
	return fmt.Errorf("%w: event descriptor matches no event type on any candidate thing class", corerr.ErrNotFound)
}

func findEventType(tc *catalogue.ThingClass, d domain.EventDescriptor) (catalogue.EventType, bool) {
	for _, et := range tc.EventTypes {
		if d.HasEventTypeID && et.ID == d.EventTypeID {
			return et, true
		}
		if !d.HasEventTypeID && et.Name == d.EventName {
			return et, true
		}
	}
	return catalogue.EventType{}, false
}

func (v *RuleValidator) resolveParamFilters(filters []domain.ParamFilter, paramTypes []catalogue.ParamType) error {
	for _, f := range filters {
		if _, err := catalogue.FindParamTypeByID(paramTypes, f.ParamTypeID); err != nil {
			return err
		}
	}
	return nil
}

func (v *RuleValidator) resolveStateEvaluator(e domain.StateEvaluator) error {
	if e.IsLeaf() {
		return v.resolveStateDescriptor(*e.StateDescriptor)
	}
	for _, child := range e.Children {
		if err := v.resolveStateEvaluator(child); err != nil {
			return err
		}
	}
	return nil
}

func (v *RuleValidator) resolveStateDescriptor(d domain.StateDescriptor) error {
	classes, err := v.candidateClasses(d.ThingID, d.InterfaceName)
	if err != nil {
		return err
	}

	for _, tc := range classes {
		if _, err := catalogue.FindStateTypeByID(tc.StateTypes, d.StateTypeID); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: state descriptor references unknown state type %s", corerr.ErrNotFound, d.StateTypeID)
}

func (v *RuleValidator) resolveRuleAction(a domain.RuleAction) error {
	classes, err := v.candidateClasses(a.ThingID, a.InterfaceName)
	if err != nil {
		return err
	}

	var at catalogue.ActionType
	found := false
	for _, tc := range classes {
		if candidate, ok := actionTypeOf(tc, a.ActionTypeID); ok {
			at = candidate
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: action references unknown action type %s", corerr.ErrNotFound, a.ActionTypeID)
	}

	for _, p := range a.Params {
		pt, err := catalogue.FindParamTypeByID(at.ParamTypes, p.ParamTypeID)
		if err != nil {
			return err
		}
		if p.Value != nil {
			if err := catalogue.ValidateParam(pt, *p.Value); err != nil {
				return err
			}
		}
		if p.StateRef != nil {
			ref := domain.StateDescriptor{ThingID: &p.StateRef.ThingID, StateTypeID: p.StateRef.StateTypeID}
			if err := v.resolveStateDescriptor(ref); err != nil {
				return fmt.Errorf("state reference: %w", err)
			}
		}
	}
	return nil
}

package domain

import (
	"fmt"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// StateReference resolves a RuleActionParam's value from another thing's
// current state at execution time, rather than from a literal.
type StateReference struct {
	ThingID     ids.ThingID
	StateTypeID ids.StateTypeID
}

// RuleActionParam supplies one value for a RuleAction's ActionType,
// either as a literal (validated at rule-store time) or as a
// StateReference (resolved at execution time), per spec.md §4.5 "Action
// parameter resolution".
type RuleActionParam struct {
	ParamTypeID ids.ParamTypeID
	Value       *values.Value
	StateRef    *StateReference
}

// Resolve produces the concrete value this param supplies, validating it
// against target once resolved. A state reference that cannot be read
// resolves to corerr.ErrNotFound; a value failing target's constraints
// resolves to corerr.ErrParamTypeMismatch.
func (p RuleActionParam) Resolve(resolver ThingStateResolver, target catalogue.ParamType) (values.Value, error) {
	var v values.Value
	switch {
	case p.StateRef != nil:
		resolved, ok := resolver.ThingState(p.StateRef.ThingID, p.StateRef.StateTypeID)
		if !ok {
			return values.Value{}, fmt.Errorf("%w: state reference thing %s state %s", corerr.ErrNotFound, p.StateRef.ThingID, p.StateRef.StateTypeID)
		}
		v = resolved
	case p.Value != nil:
		v = *p.Value
	default:
		return values.Value{}, ErrRuleActionParamUnresolved
	}

	if err := catalogue.ValidateParam(target, v); err != nil {
		return values.Value{}, fmt.Errorf("%w: %v", corerr.ErrParamTypeMismatch, err)
	}
	return v, nil
}

// RuleAction executes one action on a thing (or any/every thing
// implementing an interface) when a rule transitions or triggers.
type RuleAction struct {
	ThingID       *ids.ThingID
	InterfaceName string
	ActionTypeID  ids.ActionTypeID
	Params        []RuleActionParam
}

// IsValid reports whether exactly one target match is configured.
func (a RuleAction) IsValid() error {
	if a.ThingID == nil && a.InterfaceName == "" {
		return ErrRuleActionNoThingMatch
	}
	return nil
}

// Targets returns the concrete things this action applies to: the
// configured ThingID alone, or every thing implementing InterfaceName.
func (a RuleAction) Targets(resolver ThingStateResolver) []ids.ThingID {
	if a.ThingID != nil {
		return []ids.ThingID{*a.ThingID}
	}
	return resolver.ThingsImplementing(a.InterfaceName)
}

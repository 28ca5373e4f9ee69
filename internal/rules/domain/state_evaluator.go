package domain

import (
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// ThingStateResolver is the narrow read interface a StateEvaluator needs
// to resolve Things and their current state values. Implemented by
// internal/things.Registry; kept as an interface here the way the
// teacher's domain package depends only on its own repository
// interfaces, never on a concrete infrastructure type.
type ThingStateResolver interface {
	// ThingState returns a thing's current value for a state type, and
	// whether the thing and that state both exist.
	ThingState(thingID ids.ThingID, stateTypeID ids.StateTypeID) (values.Value, bool)

	// ThingsImplementing returns every configured thing implementing the
	// named interface.
	ThingsImplementing(interfaceName string) []ids.ThingID
}

// StateDescriptor is a leaf condition: a thing's (or every/any thing
// implementing an interface's) state must compare true against Value.
type StateDescriptor struct {
	ThingID       *ids.ThingID
	InterfaceName string
	StateTypeID   ids.StateTypeID
	Operator      ComparisonOperator
	Value         values.Value
}

// IsValid reports whether exactly one thing match is configured.
func (d StateDescriptor) IsValid() error {
	if d.ThingID == nil && d.InterfaceName == "" {
		return ErrStateDescriptorNoThingMatch
	}
	return nil
}

// evaluate resolves this leaf's thing(s) and compares their current state
// against Value. When ThingID is unset, quantifier (the enclosing node's
// BooleanOperator - or, for a root leaf, its own) selects whether all or
// any matching thing must satisfy the comparison.
func (d StateDescriptor) evaluate(resolver ThingStateResolver, quantifier BooleanOperator) bool {
	if d.ThingID != nil {
		v, ok := resolver.ThingState(*d.ThingID, d.StateTypeID)
		if !ok {
			return false
		}
		return Compare(v, d.Operator, d.Value)
	}

	thingIDs := resolver.ThingsImplementing(d.InterfaceName)
	if len(thingIDs) == 0 {
		return false
	}

	requireAll := quantifier != BooleanOperatorOr
	for _, thingID := range thingIDs {
		v, ok := resolver.ThingState(thingID, d.StateTypeID)
		satisfied := ok && Compare(v, d.Operator, d.Value)
		if requireAll && !satisfied {
			return false
		}
		if !requireAll && satisfied {
			return true
		}
	}
	return requireAll
}

// StateEvaluator is a node in the rule condition tree (spec.md §4.5,
// confirmed against server/stateevaluator.h): a leaf wraps exactly one
// StateDescriptor, an internal node wraps child evaluators combined by
// Operator. Every node, leaf or internal, carries its own Operator -
// for a leaf this is the quantifier applied to an interface reference
// when the leaf is itself the root of the tree.
type StateEvaluator struct {
	ID              ids.StateEvaluatorID
	StateDescriptor *StateDescriptor
	Children        []StateEvaluator
	Operator        BooleanOperator
}

// IsLeaf reports whether this node wraps a StateDescriptor rather than
// child evaluators.
func (e StateEvaluator) IsLeaf() bool {
	return e.StateDescriptor != nil
}

// IsValid enforces that a node is exactly one of leaf or internal, and
// validates its leaf descriptor or every child recursively.
func (e StateEvaluator) IsValid() error {
	if e.IsLeaf() {
		if len(e.Children) > 0 {
			return ErrStateEvaluatorMixed
		}
		return e.StateDescriptor.IsValid()
	}
	for _, child := range e.Children {
		if err := child.IsValid(); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate recursively evaluates the tree rooted at e.
func (e StateEvaluator) Evaluate(resolver ThingStateResolver) bool {
	return e.evaluate(resolver, e.Operator)
}

func (e StateEvaluator) evaluate(resolver ThingStateResolver, quantifier BooleanOperator) bool {
	if e.IsLeaf() {
		return e.StateDescriptor.evaluate(resolver, quantifier)
	}

	if e.Operator == BooleanOperatorOr {
		for _, child := range e.Children {
			if child.evaluate(resolver, e.Operator) {
				return true
			}
		}
		return false
	}

	for _, child := range e.Children {
		if !child.evaluate(resolver, e.Operator) {
			return false
		}
	}
	return true
}

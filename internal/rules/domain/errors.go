package domain

import "errors"

var (
	ErrEventDescriptorNoThingMatch = errors.New("event descriptor needs a thingId or an interfaceName")
	ErrEventDescriptorNoEventMatch = errors.New("event descriptor needs an eventTypeId or an eventName")
	ErrStateDescriptorNoThingMatch = errors.New("state descriptor needs a thingId or an interfaceName")
	ErrStateEvaluatorMixed         = errors.New("a state evaluator is either a leaf (stateDescriptor) or an internal node (children), never both")
	ErrRuleActionNoThingMatch      = errors.New("rule action needs a thingId or an interfaceName")
	ErrRuleActionParamUnresolved   = errors.New("rule action param has neither a literal value nor a state reference")
	ErrRuleNotFound                = errors.New("rule not found")
)

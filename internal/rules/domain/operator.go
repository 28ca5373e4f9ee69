// Package domain implements the Rule Engine's condition/action model: a
// recursive StateEvaluator tree, EventDescriptor matching, and the
// active/triggered lifecycle spec.md §4.5 describes.
package domain

import "github.com/nymea-go/thingd/pkg/values"

// ComparisonOperator is the value-comparison set shared by StateDescriptor
// and ParamFilter leaves.
type ComparisonOperator string

const (
	ComparisonEqual          ComparisonOperator = "=="
	ComparisonNotEqual       ComparisonOperator = "!="
	ComparisonLess           ComparisonOperator = "<"
	ComparisonLessOrEqual    ComparisonOperator = "<="
	ComparisonGreater        ComparisonOperator = ">"
	ComparisonGreaterOrEqual ComparisonOperator = ">="
)

// BooleanOperator combines the children of an internal StateEvaluator node,
// and - for a leaf that references an interface rather than a concrete
// thing - selects the interface quantifier ("all things satisfy" for And,
// "any thing satisfies" for Or).
type BooleanOperator string

const (
	BooleanOperatorAnd BooleanOperator = "and"
	BooleanOperatorOr  BooleanOperator = "or"
)

// Compare reports whether v op target holds. Orderings (<,<=,>,>=) are
// only meaningful between values of the same numeric kind, the way
// catalogue.ValidateParam's range check treats MinValue/MaxValue; a
// comparison across kinds, or an ordering of a non-numeric kind, is
// always false.
func Compare(v values.Value, op ComparisonOperator, target values.Value) bool {
	switch op {
	case ComparisonEqual:
		return v.Equal(target)
	case ComparisonNotEqual:
		return !v.Equal(target)
	case ComparisonLess:
		return numericLess(v, target)
	case ComparisonLessOrEqual:
		return numericLess(v, target) || v.Equal(target)
	case ComparisonGreater:
		return numericLess(target, v)
	case ComparisonGreaterOrEqual:
		return numericLess(target, v) || v.Equal(target)
	default:
		return false
	}
}

func numericLess(a, b values.Value) bool {
	if ai, ok := a.AsInt(); ok {
		if bi, ok := b.AsInt(); ok {
			return ai < bi
		}
	}
	if au, ok := a.AsUint(); ok {
		if bu, ok := b.AsUint(); ok {
			return au < bu
		}
	}
	if ad, ok := a.AsDouble(); ok {
		if bd, ok := b.AsDouble(); ok {
			return ad < bd
		}
	}
	return false
}

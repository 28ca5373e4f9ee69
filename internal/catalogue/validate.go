package catalogue

import (
	"fmt"

	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// ValidateParam checks a single value against a ParamType's declared kind,
// range, and allowed-value set. Mirrors spec's validateParam operation.
func ValidateParam(pt ParamType, v values.Value) error {
	if v.Kind() != pt.ValueKind {
		return corerr.NewValidationError(pt.Name, fmt.Sprintf("expected %s, got %s", pt.ValueKind, v.Kind()), v.String())
	}

	if pt.MinValue != nil && lessThan(v, *pt.MinValue) {
		return corerr.NewValidationError(pt.Name, "value below minimum", v.String())
	}
	if pt.MaxValue != nil && lessThan(*pt.MaxValue, v) {
		return corerr.NewValidationError(pt.Name, "value above maximum", v.String())
	}

	if len(pt.AllowedValues) > 0 {
		found := false
		for _, allowed := range pt.AllowedValues {
			if allowed.Equal(v) {
				found = true
				break
			}
		}
		if !found {
			return corerr.NewValidationError(pt.Name, "value not in allowed set", v.String())
		}
	}

	return nil
}

// lessThan orders two Values of (assumed) identical numeric kind. Non-
// numeric kinds are never ordered and report false either direction.
func lessThan(a, b values.Value) bool {
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

// ValidateParams validates a map of supplied values against an ordered list
// of ParamTypes: every non-defaulted ParamType must appear, unknown keys
// fail, and every present value is validated independently. Returns the
// first failing reason, per spec.
func ValidateParams(paramTypes []ParamType, supplied map[string]values.Value) error {
	known := make(map[string]ParamType, len(paramTypes))
	for _, pt := range paramTypes {
		known[pt.Name] = pt
	}

	for name := range supplied {
		if _, ok := known[name]; !ok {
			return corerr.NewValidationError(name, "unknown parameter", nil)
		}
	}

	for _, pt := range paramTypes {
		v, present := supplied[pt.Name]
		if !present {
			if pt.DefaultValue.Kind() == values.KindInvalid {
				return fmt.Errorf("%w: %s", corerr.ErrMissing, pt.Name)
			}
			continue
		}
		if err := ValidateParam(pt, v); err != nil {
			return err
		}
	}

	return nil
}

// FindParamTypeByName returns the ParamType with the given name, or
// corerr.ErrNotFound.
func FindParamTypeByName(paramTypes []ParamType, name string) (ParamType, error) {
	for _, pt := range paramTypes {
		if pt.Name == name {
			return pt, nil
		}
	}
	return ParamType{}, fmt.Errorf("%w: param type %q", corerr.ErrNotFound, name)
}

// FindParamTypeByID returns the ParamType with the given id, or
// corerr.ErrNotFound.
func FindParamTypeByID(paramTypes []ParamType, id ids.ParamTypeID) (ParamType, error) {
	for _, pt := range paramTypes {
		if pt.ID == id {
			return pt, nil
		}
	}
	return ParamType{}, fmt.Errorf("%w: param type", corerr.ErrNotFound)
}

// FindStateTypeByID returns the StateType with the given id, or
// corerr.ErrNotFound.
func FindStateTypeByID(stateTypes []StateType, id ids.StateTypeID) (StateType, error) {
	for _, st := range stateTypes {
		if st.StateTypeID == id {
			return st, nil
		}
	}
	return StateType{}, fmt.Errorf("%w: state type", corerr.ErrNotFound)
}

// ValidateThingClass enforces load-time schema invariants: every writable
// StateType has a matching ActionType, the thing-configuration ParamTypes
// carry no duplicate id and no inverted min/max range, and every
// ParamType's allowed values match its value kind. Duplicate ids among
// the state, event and action types, or among their own params, are not
// detected.
func ValidateThingClass(tc *ThingClass) error {
	seen := make(map[string]struct{})
	for _, pt := range tc.ParamTypes {
		if _, dup := seen[pt.ID.String()]; dup {
			return fmt.Errorf("%w: duplicate param type id in thing class %s", corerr.ErrInvalidRule, tc.Name)
		}
		seen[pt.ID.String()] = struct{}{}
	}

	actionIDs := make(map[string]struct{}, len(tc.ActionTypes))
	for _, at := range tc.ActionTypes {
		actionIDs[at.ID.String()] = struct{}{}
	}

	for _, st := range tc.StateTypes {
		if !st.Writable {
			continue
		}
		if _, ok := actionIDs[st.StateTypeID.String()]; !ok {
			return fmt.Errorf("%w: writable state %q has no matching action type", corerr.ErrInvalidRule, st.Name)
		}
	}

	for _, pt := range tc.ParamTypes {
		if pt.MinValue != nil && pt.MaxValue != nil && lessThan(*pt.MaxValue, *pt.MinValue) {
			return fmt.Errorf("%w: param %q has inverted range", corerr.ErrInvalidRule, pt.Name)
		}
	}

	for _, paramTypes := range allParamTypeLists(tc) {
		for _, pt := range paramTypes {
			if err := validateAllowedValueKinds(pt); err != nil {
				return err
			}
		}
	}

	return nil
}

// allParamTypeLists gathers every ParamType list a ThingClass declares,
// whether as thing configuration, settings, discovery params, or nested
// under a StateType/EventType/ActionType, so a schema check can sweep all
// of them without repeating the list by hand at each call site.
func allParamTypeLists(tc *ThingClass) [][]ParamType {
	lists := [][]ParamType{tc.ParamTypes, tc.SettingsTypes, tc.DiscoveryParamTypes}
	stateParams := make([]ParamType, 0, len(tc.StateTypes))
	for _, st := range tc.StateTypes {
		stateParams = append(stateParams, st.ParamType)
	}
	lists = append(lists, stateParams)
	for _, et := range tc.EventTypes {
		lists = append(lists, et.ParamTypes)
	}
	for _, at := range tc.ActionTypes {
		lists = append(lists, at.ParamTypes)
	}
	for _, at := range tc.BrowserItemActionTypes {
		lists = append(lists, at.ParamTypes)
	}
	return lists
}

// validateAllowedValueKinds rejects a ParamType whose AllowedValues
// contains a value outside its declared ValueKind, per spec.md §4.1's
// load-time schema invariant.
func validateAllowedValueKinds(pt ParamType) error {
	for _, allowed := range pt.AllowedValues {
		if allowed.Kind() != pt.ValueKind {
			return fmt.Errorf("%w: param %q has an allowed value of kind %s, declared kind %s", corerr.ErrInvalidRule, pt.Name, allowed.Kind(), pt.ValueKind)
		}
	}
	return nil
}

// Package thingresolver adapts internal/things.Registry to the narrow
// domain.ThingStateResolver interface the Rule Engine's StateEvaluator
// and RuleAction targeting need, the way internal/rules itself depends
// only on repository-shaped interfaces rather than concrete
// infrastructure types.
package thingresolver

import (
	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/internal/things"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// Adapter wraps a Thing Registry as a domain.ThingStateResolver.
type Adapter struct {
	registry *things.Registry
}

// New wraps registry for use by the Rule Engine.
func New(registry *things.Registry) *Adapter {
	return &Adapter{registry: registry}
}

// ThingState returns a thing's current value for a state type, and
// whether both the thing and that state exist.
func (a *Adapter) ThingState(thingID ids.ThingID, stateTypeID ids.StateTypeID) (values.Value, bool) {
	t, err := a.registry.Get(thingID)
	if err != nil {
		return values.Value{}, false
	}
	sv, ok := t.State(stateTypeID)
	if !ok {
		return values.Value{}, false
	}
	return sv.Value, true
}

// ThingsImplementing returns every configured thing implementing the
// named interface.
func (a *Adapter) ThingsImplementing(interfaceName string) []ids.ThingID {
	found := a.registry.FindByInterface(interfaceName)
	out := make([]ids.ThingID, len(found))
	for i, t := range found {
		out[i] = t.ID()
	}
	return out
}

// ThingClassID returns the ThingClassID of a configured thing, used by
// ActionExecutor to look up the ActionType an action dispatches against.
func (a *Adapter) ThingClassID(thingID ids.ThingID) (ids.ThingClassID, bool) {
	t, err := a.registry.Get(thingID)
	if err != nil {
		return ids.ThingClassID{}, false
	}
	return t.ThingClassID(), true
}

var _ domain.ThingStateResolver = (*Adapter)(nil)

// Package things implements the Thing Registry: lifecycle of configured
// Thing instances bound to a ThingClass, their current state values,
// parent/child relations, and setup status.
package things

import (
	"time"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// SetupStatus tracks a Thing's progress through its (possibly
// asynchronous) pairing/setup flow.
type SetupStatus string

const (
	SetupStatusNone       SetupStatus = "none"
	SetupStatusInProgress SetupStatus = "inProgress"
	SetupStatusComplete   SetupStatus = "complete"
	SetupStatusFailed     SetupStatus = "failed"
)

// StateValue is a Thing's current value for one StateType, plus the
// timestamp of its last change.
type StateValue struct {
	StateTypeID ids.StateTypeID
	Value       values.Value
	ChangedAt   time.Time
}

// Thing is a configured instance of a ThingClass: its params, settings,
// per-StateType current values, optional parent, and setup status.
type Thing struct {
	id          ids.ThingID
	thingClassID ids.ThingClassID
	pluginID    ids.PluginID
	name        string
	params      map[string]values.Value
	settings    map[string]values.Value
	states      map[ids.StateTypeID]StateValue
	parentID    *ids.ThingID
	setupStatus SetupStatus
	createdAt   time.Time
	updatedAt   time.Time
}

// NewThing constructs a Thing in SetupStatusNone, not yet persisted.
func NewThing(thingClassID ids.ThingClassID, pluginID ids.PluginID, name string, params map[string]values.Value, parentID *ids.ThingID) *Thing {
	now := time.Now().UTC()
	p := make(map[string]values.Value, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &Thing{
		id:           ids.NewThingID(),
		thingClassID: thingClassID,
		pluginID:     pluginID,
		name:         name,
		params:       p,
		settings:     map[string]values.Value{},
		states:       map[ids.StateTypeID]StateValue{},
		parentID:     parentID,
		setupStatus:  SetupStatusNone,
		createdAt:    now,
		updatedAt:    now,
	}
}

// Rehydrate reconstructs a Thing from persisted fields, used when loading
// the registry at startup.
func Rehydrate(id ids.ThingID, thingClassID ids.ThingClassID, pluginID ids.PluginID, name string,
	params, settings map[string]values.Value, states map[ids.StateTypeID]StateValue,
	parentID *ids.ThingID, status SetupStatus, createdAt, updatedAt time.Time) *Thing {
	return &Thing{
		id: id, thingClassID: thingClassID, pluginID: pluginID, name: name,
		params: params, settings: settings, states: states,
		parentID: parentID, setupStatus: status, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (t *Thing) ID() ids.ThingID             { return t.id }
func (t *Thing) ThingClassID() ids.ThingClassID { return t.thingClassID }
func (t *Thing) PluginID() ids.PluginID       { return t.pluginID }
func (t *Thing) Name() string                 { return t.name }
func (t *Thing) ParentID() *ids.ThingID       { return t.parentID }
func (t *Thing) SetupStatus() SetupStatus     { return t.setupStatus }
func (t *Thing) CreatedAt() time.Time         { return t.createdAt }
func (t *Thing) UpdatedAt() time.Time         { return t.updatedAt }

// Param returns one configuration value by name.
func (t *Thing) Param(name string) (values.Value, bool) {
	v, ok := t.params[name]
	return v, ok
}

// Params returns a copy of every configuration value, keyed by ParamType
// name.
func (t *Thing) Params() map[string]values.Value {
	cp := make(map[string]values.Value, len(t.params))
	for k, v := range t.params {
		cp[k] = v
	}
	return cp
}

// Settings returns a copy of every plugin-local setting value, keyed by
// name.
func (t *Thing) Settings() map[string]values.Value {
	cp := make(map[string]values.Value, len(t.settings))
	for k, v := range t.settings {
		cp[k] = v
	}
	return cp
}

// State returns the current StateValue for a StateType, if initialized.
func (t *Thing) State(stateTypeID ids.StateTypeID) (StateValue, bool) {
	sv, ok := t.states[stateTypeID]
	return sv, ok
}

// States returns a copy of every current state value, keyed by StateType
// id.
func (t *Thing) States() map[ids.StateTypeID]StateValue {
	cp := make(map[ids.StateTypeID]StateValue, len(t.states))
	for k, v := range t.states {
		cp[k] = v
	}
	return cp
}

// InitState seeds a StateType's value without emitting a change
// notification — used at setup time and at boot when restoring cached
// values or applying defaults.
func (t *Thing) InitState(stateTypeID ids.StateTypeID, v values.Value, at time.Time) {
	t.states[stateTypeID] = StateValue{StateTypeID: stateTypeID, Value: v, ChangedAt: at}
}

// SetSetupStatus transitions the Thing's setup state.
func (t *Thing) SetSetupStatus(status SetupStatus) {
	t.setupStatus = status
	t.touch()
}

// Reconfigure replaces the Thing's configuration params, to be followed by
// a re-run of setupThing on the owning plugin.
func (t *Thing) Reconfigure(params map[string]values.Value) {
	p := make(map[string]values.Value, len(params))
	for k, v := range params {
		p[k] = v
	}
	t.params = p
	t.touch()
}

func (t *Thing) touch() { t.updatedAt = time.Now().UTC() }

// isChanged reports whether writing newVal to a StateType whose current
// value is current counts as a change, per the StateType's filter rule.
// FilterNone: any differing write changes. FilterAdjacent: only a write
// differing from the immediately preceding value changes — consecutive
// identical writes coalesce, which for a single stored "current value" is
// the same test as FilterNone; the distinction matters when a stream of
// writes is buffered upstream of SetStateValue, where adjacent identical
// entries in that stream are dropped before ever reaching here.
func isChanged(filter catalogue.FilterRule, current, newVal values.Value) bool {
	return !current.Equal(newVal)
}

// SetStateValue validates v against st, and if the write changes the
// stored value (per st.Filter), updates it and returns true. Implements
// the Thing Registry's setStateValue operation from spec.md §4.2.
func (t *Thing) SetStateValue(st catalogue.StateType, v values.Value, at time.Time) (changed bool, err error) {
	if err := catalogue.ValidateParam(st.ParamType, v); err != nil {
		return false, err
	}

	current, hasCurrent := t.states[st.StateTypeID]
	if !hasCurrent {
		t.InitState(st.StateTypeID, v, at)
		return true, nil
	}

	if !isChanged(st.Filter, current.Value, v) {
		return false, nil
	}

	t.states[st.StateTypeID] = StateValue{StateTypeID: st.StateTypeID, Value: v, ChangedAt: at}
	t.touch()
	return true, nil
}

// RemovalPolicy controls how removing a Thing affects rules that reference
// it, per spec.md §4.2 removeThing.
type RemovalPolicy string

const (
	// RemovalCascade removes every enabled rule referencing the thing
	// entirely; disabled rules are left unchanged.
	RemovalCascade RemovalPolicy = "cascade"
	// RemovalUpdateRules prunes only the rule fragments referencing the
	// thing from enabled rules, deleting rules left empty by the pruning;
	// disabled rules are left unchanged.
	RemovalUpdateRules RemovalPolicy = "updateRules"
)

// ErrThingClassMismatch is returned when a Thing's class cannot be found in
// the catalogue it is being validated against.
var ErrThingClassMismatch = corerr.ErrNotFound

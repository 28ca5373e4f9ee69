// Package ids defines one distinct Go type per identifier kind used across
// the controller core. Every id wraps a uuid.UUID, but the wrapper types are
// never assignment-compatible with each other: a ThingID cannot be passed
// where a RuleID is expected, and the compiler rejects the mistake instead
// of a lookup silently returning the wrong aggregate at runtime.
package ids

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// PluginID identifies a loaded plugin binary/process.
type PluginID struct{ uuid.UUID }

// VendorID identifies the vendor that publishes a ThingClass.
type VendorID struct{ uuid.UUID }

// ThingClassID identifies a thing class within the Type Catalogue.
type ThingClassID struct{ uuid.UUID }

// ThingID identifies a configured thing instance.
type ThingID struct{ uuid.UUID }

// ParamTypeID identifies a parameter type descriptor within a thing class.
type ParamTypeID struct{ uuid.UUID }

// StateTypeID identifies a state type descriptor within a thing class.
type StateTypeID struct{ uuid.UUID }

// EventTypeID identifies an event type descriptor within a thing class.
type EventTypeID struct{ uuid.UUID }

// ActionTypeID identifies an action type descriptor within a thing class.
type ActionTypeID struct{ uuid.UUID }

// RuleID identifies a rule in the Rule Engine.
type RuleID struct{ uuid.UUID }

// StateEvaluatorID identifies a node (leaf or operator) in a rule's
// condition tree.
type StateEvaluatorID struct{ uuid.UUID }

// CalendarItemID identifies a calendar window within a TimeDescriptor.
type CalendarItemID struct{ uuid.UUID }

// TimeEventItemID identifies an edge-triggered time event within a
// TimeDescriptor.
type TimeEventItemID struct{ uuid.UUID }

// RuleExecutionID identifies one firing of a rule's action set.
type RuleExecutionID struct{ uuid.UUID }

// ReplyID identifies an in-flight ActionReply/SetupReply awaiting
// completion from a plugin.
type ReplyID struct{ uuid.UUID }

func newPluginID() PluginID             { return PluginID{uuid.New()} }
func newVendorID() VendorID             { return VendorID{uuid.New()} }
func newThingClassID() ThingClassID     { return ThingClassID{uuid.New()} }
func newThingID() ThingID               { return ThingID{uuid.New()} }
func newParamTypeID() ParamTypeID       { return ParamTypeID{uuid.New()} }
func newStateTypeID() StateTypeID       { return StateTypeID{uuid.New()} }
func newEventTypeID() EventTypeID       { return EventTypeID{uuid.New()} }
func newActionTypeID() ActionTypeID     { return ActionTypeID{uuid.New()} }
func newRuleID() RuleID                 { return RuleID{uuid.New()} }
func newStateEvaluatorID() StateEvaluatorID { return StateEvaluatorID{uuid.New()} }
func newCalendarItemID() CalendarItemID { return CalendarItemID{uuid.New()} }
func newTimeEventItemID() TimeEventItemID { return TimeEventItemID{uuid.New()} }
func newRuleExecutionID() RuleExecutionID { return RuleExecutionID{uuid.New()} }
func newReplyID() ReplyID               { return ReplyID{uuid.New()} }

// NewPluginID generates a new random PluginID.
func NewPluginID() PluginID { return newPluginID() }

// NewVendorID generates a new random VendorID.
func NewVendorID() VendorID { return newVendorID() }

// NewThingClassID generates a new random ThingClassID.
func NewThingClassID() ThingClassID { return newThingClassID() }

// NewThingID generates a new random ThingID.
func NewThingID() ThingID { return newThingID() }

// NewParamTypeID generates a new random ParamTypeID.
func NewParamTypeID() ParamTypeID { return newParamTypeID() }

// NewStateTypeID generates a new random StateTypeID.
func NewStateTypeID() StateTypeID { return newStateTypeID() }

// NewEventTypeID generates a new random EventTypeID.
func NewEventTypeID() EventTypeID { return newEventTypeID() }

// NewActionTypeID generates a new random ActionTypeID.
func NewActionTypeID() ActionTypeID { return newActionTypeID() }

// NewRuleID generates a new random RuleID.
func NewRuleID() RuleID { return newRuleID() }

// NewStateEvaluatorID generates a new random StateEvaluatorID.
func NewStateEvaluatorID() StateEvaluatorID { return newStateEvaluatorID() }

// NewCalendarItemID generates a new random CalendarItemID.
func NewCalendarItemID() CalendarItemID { return newCalendarItemID() }

// NewTimeEventItemID generates a new random TimeEventItemID.
func NewTimeEventItemID() TimeEventItemID { return newTimeEventItemID() }

// NewRuleExecutionID generates a new random RuleExecutionID.
func NewRuleExecutionID() RuleExecutionID { return newRuleExecutionID() }

// NewReplyID generates a new random ReplyID.
func NewReplyID() ReplyID { return newReplyID() }

// pluginNamespace scopes the deterministic plugin ids PluginIDFromName
// derives from a manifest's human-chosen string id, so the same manifest
// id always resolves to the same PluginID across restarts.
var pluginNamespace = uuid.MustParse("6f6e8b1a-6e6b-4b2a-9f0e-1a2b3c4d5e6f")

// PluginIDFromName derives a stable PluginID from a manifest's textual id
// (e.g. "acme.zigbee-gateway"), so the same plugin always resolves to the
// same PluginID across restarts without a persisted mapping table.
func PluginIDFromName(name string) PluginID {
	return PluginID{uuid.NewSHA1(pluginNamespace, []byte(name))}
}

// ThingClassIDFromName derives a stable ThingClassID from a vendor name and
// a thing class name, the same way PluginIDFromName derives a plugin's id:
// a schema file names its classes and types by string, and those names
// must resolve to the same id every time the schema is reloaded.
func ThingClassIDFromName(vendorName, className string) ThingClassID {
	return ThingClassID{uuid.NewSHA1(pluginNamespace, []byte("thingClass:"+vendorName+"."+className))}
}

// ParamTypeIDFromName derives a stable ParamTypeID scoped to the thing
// class and type kind (e.g. "actionType:setPower") it is declared under.
func ParamTypeIDFromName(scope, name string) ParamTypeID {
	return ParamTypeID{uuid.NewSHA1(pluginNamespace, []byte("paramType:"+scope+"."+name))}
}

// StateTypeIDFromName derives a stable StateTypeID scoped to the owning
// thing class.
func StateTypeIDFromName(scope, name string) StateTypeID {
	return StateTypeID{uuid.NewSHA1(pluginNamespace, []byte("stateType:"+scope+"."+name))}
}

// EventTypeIDFromName derives a stable EventTypeID scoped to the owning
// thing class.
func EventTypeIDFromName(scope, name string) EventTypeID {
	return EventTypeID{uuid.NewSHA1(pluginNamespace, []byte("eventType:"+scope+"."+name))}
}

// ActionTypeIDFromName derives a stable ActionTypeID scoped to the owning
// thing class.
func ActionTypeIDFromName(scope, name string) ActionTypeID {
	return ActionTypeID{uuid.NewSHA1(pluginNamespace, []byte("actionType:"+scope+"."+name))}
}

// VendorIDFromName derives a stable VendorID from a vendor's textual name.
func VendorIDFromName(name string) VendorID {
	return VendorID{uuid.NewSHA1(pluginNamespace, []byte("vendor:"+name))}
}

// ParsePluginID parses s as a PluginID.
func ParsePluginID(s string) (PluginID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PluginID{}, fmt.Errorf("ids: parse plugin id: %w", err)
	}
	return PluginID{u}, nil
}

// ParseThingID parses s as a ThingID.
func ParseThingID(s string) (ThingID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ThingID{}, fmt.Errorf("ids: parse thing id: %w", err)
	}
	return ThingID{u}, nil
}

// ParseThingClassID parses s as a ThingClassID.
func ParseThingClassID(s string) (ThingClassID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ThingClassID{}, fmt.Errorf("ids: parse thing class id: %w", err)
	}
	return ThingClassID{u}, nil
}

// ParseRuleID parses s as a RuleID.
func ParseRuleID(s string) (RuleID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RuleID{}, fmt.Errorf("ids: parse rule id: %w", err)
	}
	return RuleID{u}, nil
}

// IsZero reports whether id is the zero-value PluginID.
func (id PluginID) IsZero() bool { return id.UUID == uuid.Nil }

// IsZero reports whether id is the zero-value ThingID.
func (id ThingID) IsZero() bool { return id.UUID == uuid.Nil }

// IsZero reports whether id is the zero-value ThingClassID.
func (id ThingClassID) IsZero() bool { return id.UUID == uuid.Nil }

// IsZero reports whether id is the zero-value RuleID.
func (id RuleID) IsZero() bool { return id.UUID == uuid.Nil }

// Value implements driver.Valuer for the eight id types below, so each
// stores as a plain TEXT/UUID column without a per-call String() at call
// sites; the other id types have no Valuer or Scanner.
func (id PluginID) Value() (driver.Value, error) { return id.UUID.String(), nil }
func (id ThingID) Value() (driver.Value, error)  { return id.UUID.String(), nil }
func (id ThingClassID) Value() (driver.Value, error) { return id.UUID.String(), nil }
func (id RuleID) Value() (driver.Value, error)   { return id.UUID.String(), nil }
func (id StateEvaluatorID) Value() (driver.Value, error) { return id.UUID.String(), nil }
func (id CalendarItemID) Value() (driver.Value, error)   { return id.UUID.String(), nil }
func (id TimeEventItemID) Value() (driver.Value, error)  { return id.UUID.String(), nil }
func (id RuleExecutionID) Value() (driver.Value, error)  { return id.UUID.String(), nil }

// Scan implements sql.Scanner for reading an id back out of a TEXT/UUID
// column.
func (id *PluginID) Scan(src any) error { return scanUUID(&id.UUID, src) }
func (id *ThingID) Scan(src any) error  { return scanUUID(&id.UUID, src) }
func (id *ThingClassID) Scan(src any) error { return scanUUID(&id.UUID, src) }
func (id *RuleID) Scan(src any) error   { return scanUUID(&id.UUID, src) }
func (id *StateEvaluatorID) Scan(src any) error { return scanUUID(&id.UUID, src) }
func (id *CalendarItemID) Scan(src any) error   { return scanUUID(&id.UUID, src) }
func (id *TimeEventItemID) Scan(src any) error  { return scanUUID(&id.UUID, src) }
func (id *RuleExecutionID) Scan(src any) error  { return scanUUID(&id.UUID, src) }

func scanUUID(dst *uuid.UUID, src any) error {
	switch v := src.(type) {
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("ids: scan: %w", err)
		}
		*dst = u
		return nil
	case []byte:
		u, err := uuid.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("ids: scan: %w", err)
		}
		*dst = u
		return nil
	case nil:
		*dst = uuid.Nil
		return nil
	default:
		return fmt.Errorf("ids: scan: unsupported type %T", src)
	}
}

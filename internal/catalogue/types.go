// Package catalogue implements the Type Catalogue: immutable descriptors
// for ParamType, StateType, EventType, ActionType, ThingClass, Vendor, and
// Interface, parsed from plugin metadata at load time and thereafter used
// for read-only lookup and schema-directed value validation.
package catalogue

import (
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// InputType hints how a client should render a parameter for user entry.
type InputType string

const (
	InputTypeNone     InputType = ""
	InputTypeTextLine InputType = "textLine"
	InputTypeTextArea InputType = "textArea"
	InputTypePassword InputType = "password"
	InputTypeSearch   InputType = "search"
	InputTypeMail     InputType = "mail"
	InputTypeIPv4     InputType = "ipv4"
	InputTypeIPv6     InputType = "ipv6"
	InputTypeURL      InputType = "url"
)

// ParamType is the declarative schema for one configuration/event/action
// parameter: its value kind, optional bounds, and optional allow-list.
type ParamType struct {
	ID            ids.ParamTypeID
	Name          string
	DisplayName   string
	Index         int
	ValueKind     values.Kind
	DefaultValue  values.Value
	MinValue      *values.Value
	MaxValue      *values.Value
	StepSize      *values.Value
	AllowedValues []values.Value
	InputType     InputType
	Unit          string
	ReadOnly      bool
}

// IOType describes whether a StateType is device-originated, user-writable,
// or both.
type IOType string

const (
	IOTypeNone   IOType = "none"
	IOTypeDigital IOType = "digitalInput"
	IOTypeAnalog IOType = "analogInput"
)

// FilterRule controls which writes to a state value count as a "change"
// worth notifying subscribers about.
type FilterRule string

const (
	FilterNone     FilterRule = "none"
	FilterAdjacent FilterRule = "adjacent"
)

// StateType extends ParamType with the fields that make a value a Thing's
// observable/writable state rather than a bare parameter.
type StateType struct {
	ParamType
	StateTypeID     ids.StateTypeID
	IOType          IOType
	Writable        bool
	Cached          bool
	SuggestLogging  bool
	Filter          FilterRule
}

// EventType declares the ordered parameter list carried by one kind of
// event a ThingClass can emit.
type EventType struct {
	ID         ids.EventTypeID
	Name       string
	DisplayName string
	ParamTypes []ParamType
}

// ActionType declares the ordered parameter list accepted by one kind of
// action a ThingClass can execute.
type ActionType struct {
	ID         ids.ActionTypeID
	Name       string
	DisplayName string
	ParamTypes []ParamType
}

// CreateMethod enumerates how a Thing of a given class may come into
// existence.
type CreateMethod string

const (
	CreateMethodUser      CreateMethod = "user"
	CreateMethodAuto      CreateMethod = "auto"
	CreateMethodDiscovery CreateMethod = "discovery"
)

// SetupMethod enumerates the pairing flow, if any, required before a newly
// added Thing becomes usable.
type SetupMethod string

const (
	SetupMethodJustAdd    SetupMethod = "justAdd"
	SetupMethodDisplayPin SetupMethod = "displayPin"
	SetupMethodEnterPin   SetupMethod = "enterPin"
	SetupMethodPushButton SetupMethod = "pushButton"
	SetupMethodOAuth      SetupMethod = "oauth"
)

// Vendor identifies the publisher of one or more ThingClasses.
type Vendor struct {
	ID          ids.VendorID
	Name        string
	DisplayName string
}

// ThingClass is the declarative schema of one kind of Thing: its vendor,
// owning plugin, supported interfaces, and full type inventory.
type ThingClass struct {
	ID                     ids.ThingClassID
	PluginID                ids.PluginID
	VendorID                ids.VendorID
	Name                    string
	DisplayName             string
	Interfaces              []string
	CreateMethods           []CreateMethod
	SetupMethod             SetupMethod
	ParamTypes              []ParamType // thing configuration params
	SettingsTypes           []ParamType
	DiscoveryParamTypes     []ParamType
	StateTypes              []StateType
	EventTypes              []EventType
	ActionTypes             []ActionType
	BrowserItemActionTypes  []ActionType
}

// SupportsCreateMethod reports whether m is one of the class's allowed
// create methods.
func (tc *ThingClass) SupportsCreateMethod(m CreateMethod) bool {
	for _, cm := range tc.CreateMethods {
		if cm == m {
			return true
		}
	}
	return false
}

// ImplementsInterface reports whether the class declares the named
// interface.
func (tc *ThingClass) ImplementsInterface(name string) bool {
	for _, i := range tc.Interfaces {
		if i == name {
			return true
		}
	}
	return false
}

package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// schemaFile is the on-disk JSON shape a plugin author writes for each
// ThingClass a manifest's ThingClasses list names, one file per class
// named "<className>.thingclass.json" alongside the plugin's plugin.json.
// Every id is addressed by its human-chosen name rather than a UUID: the
// loader derives a stable ids.* value from (vendor, class, kind, name) the
// same way pluginhost.Manifest.PluginID derives a plugin's id, so a schema
// file never hand-manages UUIDs and still resolves to the same id on every
// reload.
type schemaFile struct {
	ClassName     string            `json:"className"`
	DisplayName   string            `json:"displayName"`
	Interfaces    []string          `json:"interfaces"`
	CreateMethods []string          `json:"createMethods"`
	SetupMethod   string            `json:"setupMethod"`
	ParamTypes    []paramTypeFile   `json:"paramTypes"`
	SettingsTypes []paramTypeFile   `json:"settingsTypes"`
	DiscoveryParamTypes []paramTypeFile `json:"discoveryParamTypes"`
	StateTypes    []stateTypeFile   `json:"stateTypes"`
	EventTypes    []eventTypeFile   `json:"eventTypes"`
	ActionTypes   []actionTypeFile  `json:"actionTypes"`
}

type paramTypeFile struct {
	Name          string         `json:"name"`
	DisplayName   string         `json:"displayName"`
	Index         int            `json:"index"`
	ValueKind     string         `json:"valueKind"`
	DefaultValue  *values.Value  `json:"defaultValue,omitempty"`
	MinValue      *values.Value  `json:"minValue,omitempty"`
	MaxValue      *values.Value  `json:"maxValue,omitempty"`
	StepSize      *values.Value  `json:"stepSize,omitempty"`
	AllowedValues []values.Value `json:"allowedValues,omitempty"`
	InputType     string         `json:"inputType,omitempty"`
	Unit          string         `json:"unit,omitempty"`
	ReadOnly      bool           `json:"readOnly,omitempty"`
}

type stateTypeFile struct {
	paramTypeFile
	IOType         string `json:"ioType,omitempty"`
	Writable       bool   `json:"writable,omitempty"`
	Cached         bool   `json:"cached,omitempty"`
	SuggestLogging bool   `json:"suggestLogging,omitempty"`
	Filter         string `json:"filter,omitempty"`
}

type eventTypeFile struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName"`
	ParamTypes  []paramTypeFile `json:"paramTypes"`
}

type actionTypeFile struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName"`
	ParamTypes  []paramTypeFile `json:"paramTypes"`
}

// schemaFilename returns the conventional per-class schema filename,
// named "<className>.thingclass.json" in the plugin's manifest directory.
func schemaFilename(className string) string {
	return className + ".thingclass.json"
}

// LoadThingClassFile reads, converts, and validates one "<class>.thingclass.json"
// file, deriving every id deterministically from vendorName/pluginID/the
// file's own names rather than reading ids off disk.
func LoadThingClassFile(path string, pluginID ids.PluginID, vendorName string) (*ThingClass, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: read schema %s: %w", path, err)
	}

	var sf schemaFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("catalogue: parse schema %s: %w", path, err)
	}

	scope := vendorName + "." + sf.ClassName
	tc := &ThingClass{
		ID:          ids.ThingClassIDFromName(vendorName, sf.ClassName),
		PluginID:    pluginID,
		VendorID:    ids.VendorIDFromName(vendorName),
		Name:        sf.ClassName,
		DisplayName: sf.DisplayName,
		Interfaces:  sf.Interfaces,
	}

	for _, cm := range sf.CreateMethods {
		tc.CreateMethods = append(tc.CreateMethods, CreateMethod(cm))
	}
	if sf.SetupMethod != "" {
		tc.SetupMethod = SetupMethod(sf.SetupMethod)
	} else {
		tc.SetupMethod = SetupMethodJustAdd
	}

	var convErr error
	convert := func(kind, name string, pts []paramTypeFile) []ParamType {
		out := make([]ParamType, 0, len(pts))
		for _, pt := range pts {
			converted, err := convertParamType(scope+"."+kind, pt)
			if err != nil {
				convErr = err
				return nil
			}
			out = append(out, converted)
		}
		return out
	}

	tc.ParamTypes = convert("param", sf.ClassName, sf.ParamTypes)
	if convErr != nil {
		return nil, convErr
	}
	tc.SettingsTypes = convert("settings", sf.ClassName, sf.SettingsTypes)
	if convErr != nil {
		return nil, convErr
	}
	tc.DiscoveryParamTypes = convert("discovery", sf.ClassName, sf.DiscoveryParamTypes)
	if convErr != nil {
		return nil, convErr
	}

	for _, st := range sf.StateTypes {
		pt, err := convertParamType(scope+".state", st.paramTypeFile)
		if err != nil {
			return nil, err
		}
		tc.StateTypes = append(tc.StateTypes, StateType{
			ParamType:      pt,
			StateTypeID:    ids.StateTypeIDFromName(scope, st.Name),
			IOType:         IOType(orDefault(st.IOType, string(IOTypeNone))),
			Writable:       st.Writable,
			Cached:         st.Cached,
			SuggestLogging: st.SuggestLogging,
			Filter:         FilterRule(orDefault(st.Filter, string(FilterNone))),
		})
	}

	for _, et := range sf.EventTypes {
		tc.EventTypes = append(tc.EventTypes, EventType{
			ID:          ids.EventTypeIDFromName(scope, et.Name),
			Name:        et.Name,
			DisplayName: et.DisplayName,
			ParamTypes:  convert("event."+et.Name, et.Name, et.ParamTypes),
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	for _, at := range sf.ActionTypes {
		tc.ActionTypes = append(tc.ActionTypes, ActionType{
			ID:          ids.ActionTypeIDFromName(scope, at.Name),
			Name:        at.Name,
			DisplayName: at.DisplayName,
			ParamTypes:  convert("action."+at.Name, at.Name, at.ParamTypes),
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	if err := ValidateThingClass(tc); err != nil {
		return nil, fmt.Errorf("catalogue: invalid schema %s: %w", path, err)
	}

	return tc, nil
}

func convertParamType(scope string, pt paramTypeFile) (ParamType, error) {
	kind, err := values.ParseKind(pt.ValueKind)
	if err != nil {
		return ParamType{}, fmt.Errorf("catalogue: param %q: %w", pt.Name, err)
	}

	out := ParamType{
		ID:          ids.ParamTypeIDFromName(scope, pt.Name),
		Name:        pt.Name,
		DisplayName: pt.DisplayName,
		Index:       pt.Index,
		ValueKind:   kind,
		MinValue:    pt.MinValue,
		MaxValue:    pt.MaxValue,
		StepSize:    pt.StepSize,
		AllowedValues: pt.AllowedValues,
		InputType:   InputType(pt.InputType),
		Unit:        pt.Unit,
		ReadOnly:    pt.ReadOnly,
	}
	if pt.DefaultValue != nil {
		out.DefaultValue = *pt.DefaultValue
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// LoadPluginSchemas loads every "<class>.thingclass.json" a manifest names
// (pluginhost.Manifest.ThingClasses), relative to manifestDir, registering
// the vendor once and each resolved ThingClass into cat.
func LoadPluginSchemas(cat *Catalogue, manifestDir, vendorName string, pluginID ids.PluginID, classNames []string) error {
	cat.RegisterVendor(Vendor{ID: ids.VendorIDFromName(vendorName), Name: vendorName, DisplayName: vendorName})

	for _, className := range classNames {
		path := filepath.Join(manifestDir, schemaFilename(className))
		tc, err := LoadThingClassFile(path, pluginID, vendorName)
		if err != nil {
			return err
		}
		if err := cat.RegisterThingClass(tc); err != nil {
			return fmt.Errorf("catalogue: register %s: %w", className, err)
		}
	}
	return nil
}

package values

import (
	"encoding/json"
	"fmt"
)

// wireValue is the tagged-union wire shape used for JSON persistence and
// plugin-boundary marshaling. Exactly one payload field is set per Kind.
type wireValue struct {
	Kind       string             `json:"kind"`
	Bool       *bool              `json:"bool,omitempty"`
	Int        *int64             `json:"int,omitempty"`
	Uint       *uint64            `json:"uint,omitempty"`
	Double     *float64           `json:"double,omitempty"`
	String     *string            `json:"string,omitempty"`
	StringList []string           `json:"string_list,omitempty"`
	Uuid       *string            `json:"uuid,omitempty"`
	Color      *Color             `json:"color,omitempty"`
	Time       *Clock             `json:"time,omitempty"`
	Map        map[string]Value   `json:"map,omitempty"`
	List       []Value            `json:"list,omitempty"`
}

// MarshalJSON encodes the Value as a tagged object so the Kind survives a
// round trip even when the payload is the JSON-ambiguous zero value.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindInvalid:
	case KindBool:
		w.Bool = &v.boolVal
	case KindInt:
		w.Int = &v.intVal
	case KindUint:
		w.Uint = &v.uintVal
	case KindDouble:
		w.Double = &v.doubleVal
	case KindString:
		w.String = &v.stringVal
	case KindStringList:
		w.StringList = v.stringList
	case KindUuid:
		w.Uuid = &v.uuidVal
	case KindColor:
		w.Color = &v.colorVal
	case KindTime:
		w.Time = &v.timeVal
	case KindMap:
		w.Map = v.mapVal
	case KindList:
		w.List = v.listVal
	default:
		return nil, fmt.Errorf("values: marshal: unknown kind %d", v.kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a tagged Value object produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("values: unmarshal: %w", err)
	}
	switch w.Kind {
	case "", "Invalid":
		*v = Value{}
	case "Bool":
		*v = Bool(derefBool(w.Bool))
	case "Int":
		*v = Int(derefInt(w.Int))
	case "Uint":
		*v = Uint(derefUint(w.Uint))
	case "Double":
		*v = Double(derefDouble(w.Double))
	case "String":
		*v = String(derefString(w.String))
	case "StringList":
		*v = StringList(w.StringList)
	case "Uuid":
		*v = Uuid(derefString(w.Uuid))
	case "Color":
		if w.Color != nil {
			*v = ColorVal(*w.Color)
		} else {
			*v = ColorVal(Color{})
		}
	case "Time":
		if w.Time != nil {
			*v = TimeVal(*w.Time)
		} else {
			*v = TimeVal(Clock{})
		}
	case "Map":
		*v = Map(w.Map)
	case "List":
		*v = List(w.List)
	default:
		return fmt.Errorf("values: unmarshal: unknown kind %q", w.Kind)
	}
	return nil
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func derefInt(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefUint(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefDouble(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

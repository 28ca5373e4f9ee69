// Package values implements the Value sum type that flows between plugins,
// the Type Catalogue, and the Rule Engine: a single tagged union standing in
// for every ParamType.valueType, instead of an open type hierarchy.
package values

import (
	"fmt"
)

// Kind tags which variant of Value is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindDouble
	KindString
	KindStringList
	KindUuid
	KindColor
	KindTime
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindUint:
		return "Uint"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindStringList:
		return "StringList"
	case KindUuid:
		return "Uuid"
	case KindColor:
		return "Color"
	case KindTime:
		return "Time"
	case KindMap:
		return "Map"
	case KindList:
		return "List"
	default:
		return "Invalid"
	}
}

// ParseKind parses a ParamType schema file's textual "valueKind" field,
// the inverse of Kind.String().
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Bool":
		return KindBool, nil
	case "Int":
		return KindInt, nil
	case "Uint":
		return KindUint, nil
	case "Double":
		return KindDouble, nil
	case "String":
		return KindString, nil
	case "StringList":
		return KindStringList, nil
	case "Uuid":
		return KindUuid, nil
	case "Color":
		return KindColor, nil
	case "Time":
		return KindTime, nil
	case "Map":
		return KindMap, nil
	case "List":
		return KindList, nil
	default:
		return KindInvalid, fmt.Errorf("values: unknown kind %q", s)
	}
}

// Color is an RGBA color value, each channel 0-255.
type Color struct {
	R, G, B, A uint8
}

// Clock is an hour/minute wall-clock time-of-day value, independent of any
// date or timezone.
type Clock struct {
	Hour, Minute int
}

// Value is a closed tagged union: exactly one of the typed fields is
// meaningful, selected by Kind. The zero Value has Kind == KindInvalid.
type Value struct {
	kind       Kind
	boolVal    bool
	intVal     int64
	uintVal    uint64
	doubleVal  float64
	stringVal  string
	stringList []string
	uuidVal    string
	colorVal   Color
	timeVal    Clock
	mapVal     map[string]Value
	listVal    []Value
}

func (v Value) Kind() Kind { return v.kind }

func Bool(b bool) Value          { return Value{kind: KindBool, boolVal: b} }
func Int(i int64) Value          { return Value{kind: KindInt, intVal: i} }
func Uint(u uint64) Value        { return Value{kind: KindUint, uintVal: u} }
func Double(d float64) Value     { return Value{kind: KindDouble, doubleVal: d} }
func String(s string) Value      { return Value{kind: KindString, stringVal: s} }
func StringList(ss []string) Value {
	cp := append([]string(nil), ss...)
	return Value{kind: KindStringList, stringList: cp}
}
func Uuid(u string) Value  { return Value{kind: KindUuid, uuidVal: u} }
func ColorVal(c Color) Value { return Value{kind: KindColor, colorVal: c} }
func TimeVal(t Clock) Value  { return Value{kind: KindTime, timeVal: t} }
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, mapVal: cp}
}
func List(vs []Value) Value {
	cp := append([]Value(nil), vs...)
	return Value{kind: KindList, listVal: cp}
}

// AsBool returns the bool payload and whether Kind == KindBool.
func (v Value) AsBool() (bool, bool) { return v.boolVal, v.kind == KindBool }

// AsInt returns the int payload and whether Kind == KindInt.
func (v Value) AsInt() (int64, bool) { return v.intVal, v.kind == KindInt }

// AsUint returns the uint payload and whether Kind == KindUint.
func (v Value) AsUint() (uint64, bool) { return v.uintVal, v.kind == KindUint }

// AsDouble returns the float payload and whether Kind == KindDouble.
func (v Value) AsDouble() (float64, bool) { return v.doubleVal, v.kind == KindDouble }

// AsString returns the string payload and whether Kind == KindString.
func (v Value) AsString() (string, bool) { return v.stringVal, v.kind == KindString }

// AsStringList returns the string-list payload and whether Kind == KindStringList.
func (v Value) AsStringList() ([]string, bool) { return v.stringList, v.kind == KindStringList }

// AsUuid returns the uuid payload and whether Kind == KindUuid.
func (v Value) AsUuid() (string, bool) { return v.uuidVal, v.kind == KindUuid }

// AsColor returns the color payload and whether Kind == KindColor.
func (v Value) AsColor() (Color, bool) { return v.colorVal, v.kind == KindColor }

// AsTime returns the clock payload and whether Kind == KindTime.
func (v Value) AsTime() (Clock, bool) { return v.timeVal, v.kind == KindTime }

// AsMap returns the map payload and whether Kind == KindMap.
func (v Value) AsMap() (map[string]Value, bool) { return v.mapVal, v.kind == KindMap }

// AsList returns the list payload and whether Kind == KindList.
func (v Value) AsList() ([]Value, bool) { return v.listVal, v.kind == KindList }

// Equal reports deep equality between two Values of the same Kind. Values of
// differing Kind are never equal, even Int(1) vs Uint(1).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInvalid:
		return true
	case KindBool:
		return v.boolVal == other.boolVal
	case KindInt:
		return v.intVal == other.intVal
	case KindUint:
		return v.uintVal == other.uintVal
	case KindDouble:
		return v.doubleVal == other.doubleVal
	case KindString:
		return v.stringVal == other.stringVal
	case KindUuid:
		return v.uuidVal == other.uuidVal
	case KindColor:
		return v.colorVal == other.colorVal
	case KindTime:
		return v.timeVal == other.timeVal
	case KindStringList:
		if len(v.stringList) != len(other.stringList) {
			return false
		}
		for i := range v.stringList {
			if v.stringList[i] != other.stringList[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(v.listVal) != len(other.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(other.listVal[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mapVal) != len(other.mapVal) {
			return false
		}
		for k, mv := range v.mapVal {
			ov, ok := other.mapVal[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a human-readable form of the value, used for logging.
func (v Value) String() string {
	switch v.kind {
	case KindInvalid:
		return "<invalid>"
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindInt:
		return fmt.Sprintf("%d", v.intVal)
	case KindUint:
		return fmt.Sprintf("%d", v.uintVal)
	case KindDouble:
		return fmt.Sprintf("%g", v.doubleVal)
	case KindString:
		return v.stringVal
	case KindStringList:
		return fmt.Sprintf("%v", v.stringList)
	case KindUuid:
		return v.uuidVal
	case KindColor:
		return fmt.Sprintf("rgba(%d,%d,%d,%d)", v.colorVal.R, v.colorVal.G, v.colorVal.B, v.colorVal.A)
	case KindTime:
		return fmt.Sprintf("%02d:%02d", v.timeVal.Hour, v.timeVal.Minute)
	case KindMap:
		return fmt.Sprintf("%v", v.mapVal)
	case KindList:
		return fmt.Sprintf("%v", v.listVal)
	default:
		return "<unknown>"
	}
}

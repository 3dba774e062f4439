package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the value kind a field carries.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindVec2
	KindVec3
	KindColor
	KindEnum
	KindRef
	KindObject
	KindDelegate // callback/event slot, carries no comparable value
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindString:   "string",
	KindVec2:     "vec2",
	KindVec3:     "vec3",
	KindColor:    "color",
	KindEnum:     "enum",
	KindRef:      "ref",
	KindObject:   "object",
	KindDelegate: "delegate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromName maps a schema kind name to a Kind.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindNull, false
}

// Vec2 is a 2D vector field value.
type Vec2 struct {
	X, Y float64
}

// Vec3 is a 3D vector field value.
type Vec3 struct {
	X, Y, Z float64
}

// Color is an RGBA color field value with 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

// Value is a tagged variant over the fixed field kind set. The zero Value
// is null. Values are immutable once constructed.
type Value struct {
	kind  Kind
	i     int64
	f     float64
	b     bool
	s     string // string, enum, ref key, object description
	vec   Vec3   // vec2 uses X/Y only
	color Color
}

func Null() Value                { return Value{} }
func Int(v int64) Value          { return Value{kind: KindInt, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Enum(v string) Value        { return Value{kind: KindEnum, s: v} }
func Vector2(x, y float64) Value { return Value{kind: KindVec2, vec: Vec3{X: x, Y: y}} }
func Vector3(x, y, z float64) Value {
	return Value{kind: KindVec3, vec: Vec3{X: x, Y: y, Z: z}}
}
func RGBA(r, g, b, a uint8) Value {
	return Value{kind: KindColor, color: Color{R: r, G: g, B: b, A: a}}
}

// Ref holds the identity key of another record.
func Ref(key string) Value { return Value{kind: KindRef, s: key} }

// Object holds an opaque nested-object description. Objects compare by
// their textual form only.
func Object(desc string) Value { return Value{kind: KindObject, s: desc} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Int() int64    { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool    { return v.b }
func (v Value) Str() string   { return v.s }
func (v Value) RefKey() string { return v.s }
func (v Value) Vec() Vec3     { return v.vec }
func (v Value) Color() Color  { return v.color }

// Num returns the value as a float64 for numeric kinds.
func (v Value) Num() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Text returns the canonical textual form of the value. It is the form
// text operators and the cross-kind comparison fallback work on.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString, KindEnum, KindRef, KindObject:
		return v.s
	case KindVec2:
		return fmt.Sprintf("(%g, %g)", v.vec.X, v.vec.Y)
	case KindVec3:
		return fmt.Sprintf("(%g, %g, %g)", v.vec.X, v.vec.Y, v.vec.Z)
	case KindColor:
		return fmt.Sprintf("#%02X%02X%02X%02X", v.color.R, v.color.G, v.color.B, v.color.A)
	default:
		return ""
	}
}

// Field looks up one named member of a nested object value. Anything
// that prevents the lookup (a non-object value, a malformed payload, a
// missing member) degrades to null.
func (v Value) Field(name string) Value {
	if v.kind != KindObject {
		return Null()
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(v.s), &doc); err != nil {
		return Null()
	}
	raw, ok := doc[name]
	if !ok {
		return Null()
	}
	return valueFromJSON(raw)
}

// valueFromJSON converts a raw JSON member by shape: integral numbers
// become ints, 2- and 3-element numeric arrays become vectors,
// {"$ref": key} becomes a reference, and other objects stay opaque.
func valueFromJSON(raw json.RawMessage) Value {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Null()
	}
	switch x := probe.(type) {
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case float64:
		if x == math.Trunc(x) {
			return Int(int64(x))
		}
		return Float(x)
	case []interface{}:
		if xs, ok := floatSlice(x); ok {
			switch len(xs) {
			case 2:
				return Vector2(xs[0], xs[1])
			case 3:
				return Vector3(xs[0], xs[1], xs[2])
			}
		}
		return Object(string(raw))
	case map[string]interface{}:
		if ref, ok := x["$ref"].(string); ok && ref != "" {
			return Ref(ref)
		}
		return Object(string(raw))
	default:
		return Null()
	}
}

func floatSlice(arr []interface{}) ([]float64, bool) {
	xs := make([]float64, len(arr))
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return nil, false
		}
		xs[i] = f
	}
	return xs, true
}

// IsTextual reports whether the value participates in regex matching.
func (v Value) IsTextual() bool {
	switch v.kind {
	case KindString, KindEnum, KindRef:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether the value carries a native numeric ordering.
func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindFloat
}

// Coerce attempts to convert v into the target kind. It returns the
// converted value and whether the conversion succeeded. Conversions are
// limited to the ones the query engine relies on: numeric widening,
// string parsing into numbers and bools, and textual narrowing.
func (v Value) Coerce(target Kind) (Value, bool) {
	if v.kind == target {
		return v, true
	}
	switch target {
	case KindInt:
		switch v.kind {
		case KindFloat:
			return Int(int64(v.f)), true
		case KindBool:
			if v.b {
				return Int(1), true
			}
			return Int(0), true
		case KindString, KindEnum:
			if n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64); err == nil {
				return Int(n), true
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
				return Int(int64(f)), true
			}
		}
	case KindFloat:
		switch v.kind {
		case KindInt:
			return Float(float64(v.i)), true
		case KindString, KindEnum:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
				return Float(f), true
			}
		}
	case KindBool:
		if v.kind == KindString || v.kind == KindEnum {
			if b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v.s))); err == nil {
				return Bool(b), true
			}
		}
	case KindString:
		return String(v.Text()), true
	case KindEnum:
		if v.kind == KindString {
			return Enum(v.s), true
		}
	case KindRef:
		if v.kind == KindString {
			return Ref(v.s), true
		}
	}
	return Null(), false
}

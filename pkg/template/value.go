package template

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a variable value as the engine sees it. The zero Value is null.
type Value struct {
	kind Kind
	str  string // string value, or the literal text of a number
	num  float64
	b    bool
	list []Value
	obj  map[string]Value
	raw  any // original object, kept for its JSON string form
}

// Null is the null Value.
var Null = Value{}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns a number Value.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue returns a bool Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue returns a list Value.
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// FromAny converts decoded JSON or plain Go data into a Value.
// Maps with string keys become objects, slices and arrays become lists.
// json.Number keeps its literal text. Anything unrecognised is formatted
// with fmt and treated as a string.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return StringValue(x.String())
		}
		return Value{kind: KindNumber, num: f, str: x.String()}
	case float64:
		return NumberValue(x)
	case float32:
		return Value{kind: KindNumber, num: float64(x), str: formatFloat(float64(x), 32)}
	case int:
		return Value{kind: KindNumber, num: float64(x), str: strconv.Itoa(x)}
	case int64:
		return Value{kind: KindNumber, num: float64(x), str: strconv.FormatInt(x, 10)}
	case int32:
		return Value{kind: KindNumber, num: float64(x), str: strconv.FormatInt(int64(x), 10)}
	case uint:
		return Value{kind: KindNumber, num: float64(x), str: strconv.FormatUint(uint64(x), 10)}
	case uint64:
		return Value{kind: KindNumber, num: float64(x), str: strconv.FormatUint(x, 10)}
	case map[string]any:
		obj := make(map[string]Value, len(x))
		for k, item := range x {
			obj[k] = FromAny(item)
		}
		return Value{kind: KindObject, obj: obj, raw: x}
	case []any:
		list := make([]Value, len(x))
		for i, item := range x {
			list[i] = FromAny(item)
		}
		return Value{kind: KindList, list: list}
	case []string:
		list := make([]Value, len(x))
		for i, item := range x {
			list[i] = StringValue(item)
		}
		return Value{kind: KindList, list: list}
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Value{kind: KindList}
		}
		list := make([]Value, rv.Len())
		for i := range list {
			list[i] = FromAny(rv.Index(i).Interface())
		}
		return Value{kind: KindList, list: list}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := make(map[string]Value, rv.Len())
		raw := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			obj[k] = FromAny(iter.Value().Interface())
			raw[k] = iter.Value().Interface()
		}
		return Value{kind: KindObject, obj: obj, raw: raw}
	case reflect.Float32:
		return Value{kind: KindNumber, num: rv.Float(), str: formatFloat(rv.Float(), 32)}
	case reflect.Float64:
		return NumberValue(rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Value{kind: KindNumber, num: float64(rv.Int()), str: strconv.FormatInt(rv.Int(), 10)}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Value{kind: KindNumber, num: float64(rv.Uint()), str: strconv.FormatUint(rv.Uint(), 10)}
	case reflect.String:
		return StringValue(rv.String())
	case reflect.Bool:
		return BoolValue(rv.Bool())
	}
	return StringValue(fmt.Sprint(rv.Interface()))
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Len returns the number of list elements or object keys, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindObject:
		return len(v.obj)
	}
	return 0
}

// Index returns the i-th list element.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null
	}
	return v.list[i]
}

// Field returns an object property.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Null, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Keys returns the sorted property names of an object.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Truthy evaluates v for a conditional guard.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindString:
		return strings.TrimSpace(v.str) != ""
	case KindNumber:
		return v.num != 0
	case KindList:
		return len(v.list) > 0
	case KindObject:
		return len(v.obj) > 0
	}
	return false
}

// String returns the text substituted for v in a template.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.str != "" {
			return v.str
		}
		return formatFloat(v.num, 64)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	case KindObject:
		data, err := json.Marshal(v.raw)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return ""
}

// formatFloat renders f the way JavaScript turns a number into a string:
// shortest round-trip digits, exponent form below 1e-6 and from 1e21 up.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s := strconv.FormatFloat(f, 'e', -1, bitSize)
		// Go pads the exponent to two digits, JavaScript does not.
		s = strings.Replace(s, "e+0", "e+", 1)
		return strings.Replace(s, "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}

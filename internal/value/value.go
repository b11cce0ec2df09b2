// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package value defines the dynamically-typed values held by tagx variables.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	List
	Map
	Area
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	case Map:
		return "map"
	case Area:
		return "area"
	}
	return "unknown"
}

// Value is a closed sum of the shapes produced by the evaluator and the
// content store. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// FromBool wraps a bool.
func FromBool(b bool) Value { return Value{kind: Bool, b: b} }

// FromInt wraps an int64.
func FromInt(i int64) Value { return Value{kind: Int, i: i} }

// FromFloat wraps a float64.
func FromFloat(f float64) Value { return Value{kind: Float, f: f} }

// FromString wraps a string.
func FromString(s string) Value { return Value{kind: String, s: s} }

// FromList wraps a slice of values.
func FromList(items []Value) Value { return Value{kind: List, list: items} }

// NewMap returns an empty map value. Maps are shared by reference so nested
// assignment mutates in place.
func NewMap() Value { return Value{kind: Map, m: make(map[string]Value)} }

// FromMap wraps a map of values.
func FromMap(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{kind: Map, m: m}
}

// AreaRef references a content-store area by id.
func AreaRef(id int64) Value { return Value{kind: Area, i: id} }

// From converts a plain Go value into a Value.
func From(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case bool:
		return FromBool(x)
	case int:
		return FromInt(int64(x))
	case int64:
		return FromInt(x)
	case float64:
		return FromFloat(x)
	case string:
		return FromString(x)
	case []Value:
		return FromList(x)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = From(e)
		}
		return FromList(items)
	case []string:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = FromString(e)
		}
		return FromList(items)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = From(e)
		}
		return FromMap(m)
	case map[string]Value:
		return FromMap(x)
	}
	return FromString(fmt.Sprint(v))
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull returns true for the null value.
func (v Value) IsNull() bool { return v.kind == Null }

// IsNumber returns true for int and float values.
func (v Value) IsNumber() bool { return v.kind == Int || v.kind == Float }

// String returns the text form used when a value is spliced into output.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return ""
	case Bool:
		return strconv.FormatBool(v.b)
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case String:
		return v.s
	case List:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return strings.Join(parts, ", ")
	case Map:
		keys := v.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Area:
		return strconv.FormatInt(v.i, 10)
	}
	return ""
}

// Truthy reports the boolean interpretation of a value.
func (v Value) Truthy() bool {
	switch v.kind {
	case Bool:
		return v.b
	case Int:
		return v.i != 0
	case Float:
		return v.f != 0
	case String:
		return v.s != "" && v.s != "0" && !strings.EqualFold(v.s, "false")
	case List:
		return len(v.list) > 0
	case Map:
		return len(v.m) > 0
	case Area:
		return v.i != 0
	}
	return false
}

// AsInt coerces a value to an integer.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case Int, Area:
		return v.i, true
	case Float:
		if v.f != math.Trunc(v.f) {
			return 0, false
		}
		return int64(v.f), true
	case Bool:
		if v.b {
			return 1, true
		}
		return 0, true
	case String:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

// AsFloat coerces a value to a float.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	case Bool:
		if v.b {
			return 1, true
		}
		return 0, true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	}
	return 0, false
}

// AsBool returns the bool payload, or Truthy for other kinds.
func (v Value) AsBool() bool {
	return v.Truthy()
}

// List returns the items of a list value, or nil.
func (v Value) List() []Value {
	if v.kind == List {
		return v.list
	}
	return nil
}

// Map returns the entries of a map value, or nil.
func (v Value) Map() map[string]Value {
	if v.kind == Map {
		return v.m
	}
	return nil
}

// AreaID returns the referenced area id.
func (v Value) AreaID() (int64, bool) {
	if v.kind == Area {
		return v.i, true
	}
	return 0, false
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the length of a list, map or string value.
func (v Value) Len() int {
	switch v.kind {
	case List:
		return len(v.list)
	case Map:
		return len(v.m)
	case String:
		return len([]rune(v.s))
	}
	return 0
}

// Seq views a value as a sequence: lists as-is, maps as a key-sorted list of
// {key, value} entries, null as empty and anything else as a single item.
func (v Value) Seq() []Value {
	switch v.kind {
	case List:
		return v.list
	case Map:
		keys := v.Keys()
		items := make([]Value, len(keys))
		for i, k := range keys {
			items[i] = FromMap(map[string]Value{"key": FromString(k), "value": v.m[k]})
		}
		return items
	case Null:
		return nil
	}
	return []Value{v}
}

// Field returns a map entry, or null.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != Map {
		return Value{}, false
	}
	f, ok := v.m[name]
	return f, ok
}

// SetField assigns a map entry in place. It reports false for non-maps.
func (v Value) SetField(name string, f Value) bool {
	if v.kind != Map {
		return false
	}
	v.m[name] = f
	return true
}

// Equal compares two values, treating numbers by numeric value and falling
// back to string comparison across kinds.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	}
	if a.kind != b.kind {
		if a.kind == Null || b.kind == Null {
			return a.kind == b.kind
		}
		return a.String() == b.String()
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Map:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return a.String() == b.String()
}

// Compare orders two values numerically when both coerce to numbers and
// lexically otherwise.
func Compare(a, b Value) int {
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(a.String(), b.String())
}

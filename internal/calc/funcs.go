// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package calc

import (
	"fmt"
	"math"
	"strings"

	"nickandperla.net/tagx/internal/value"
)

type builtinFunc func(args []value.Value) (value.Value, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"len":      fnLen,
		"upper":    strFn(strings.ToUpper),
		"lower":    strFn(strings.ToLower),
		"trim":     strFn(strings.TrimSpace),
		"str":      fnStr,
		"int":      fnInt,
		"float":    fnFloat,
		"abs":      fnAbs,
		"round":    fnRound,
		"min":      fnMinMax(-1),
		"max":      fnMinMax(1),
		"contains": fnContains,
		"join":     fnJoin,
		"split":    fnSplit,
		"replace":  fnReplace,
		"substr":   fnSubstr,
		"empty":    fnEmpty,
		"default":  fnDefault,
		"keys":     fnKeys,
		"list":     func(args []value.Value) (value.Value, error) { return value.FromList(args), nil },
	}
}

// Functions returns the names of the built-in functions.
func Functions() []string {
	names := make([]string, 0, len(builtins)+1)
	for n := range builtins {
		names = append(names, n)
	}
	return append(names, "defined")
}

func arity(args []value.Value, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		if lo == hi {
			return fmt.Errorf("expected %d arguments, got %d", lo, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func strFn(f func(string) string) builtinFunc {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1, 1); err != nil {
			return value.NullValue(), err
		}
		return value.FromString(f(args[0].String())), nil
	}
}

func fnLen(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	return value.FromInt(int64(args[0].Len())), nil
}

func fnStr(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	return value.FromString(args[0].String()), nil
}

func fnInt(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	if i, ok := args[0].AsInt(); ok {
		return value.FromInt(i), nil
	}
	if f, ok := args[0].AsFloat(); ok {
		return value.FromInt(int64(f)), nil
	}
	return value.NullValue(), fmt.Errorf("%q is not a number", args[0].String())
}

func fnFloat(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return value.NullValue(), fmt.Errorf("%q is not a number", args[0].String())
	}
	return value.FromFloat(f), nil
}

func fnAbs(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return value.NullValue(), fmt.Errorf("%q is not a number", args[0].String())
	}
	return number(math.Abs(f)), nil
}

func fnRound(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.NullValue(), err
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return value.NullValue(), fmt.Errorf("%q is not a number", args[0].String())
	}
	places := int64(0)
	if len(args) == 2 {
		places, _ = args[1].AsInt()
	}
	scale := math.Pow(10, float64(places))
	return number(math.Round(f*scale) / scale), nil
}

func fnMinMax(sign int) builtinFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 1 && args[0].Kind() == value.List {
			args = args[0].List()
		}
		if len(args) == 0 {
			return value.NullValue(), nil
		}
		best := args[0]
		for _, a := range args[1:] {
			if value.Compare(a, best)*sign > 0 {
				best = a
			}
		}
		return best, nil
	}
}

func fnContains(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 2); err != nil {
		return value.NullValue(), err
	}
	switch args[0].Kind() {
	case value.List:
		for _, it := range args[0].List() {
			if value.Equal(it, args[1]) {
				return value.FromBool(true), nil
			}
		}
		return value.FromBool(false), nil
	case value.Map:
		_, ok := args[0].Field(args[1].String())
		return value.FromBool(ok), nil
	}
	return value.FromBool(strings.Contains(args[0].String(), args[1].String())), nil
}

func fnJoin(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.NullValue(), err
	}
	sep := ", "
	if len(args) == 2 {
		sep = args[1].String()
	}
	items := args[0].Seq()
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return value.FromString(strings.Join(parts, sep)), nil
}

func fnSplit(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.NullValue(), err
	}
	sep := ","
	if len(args) == 2 {
		sep = args[1].String()
	}
	s := args[0].String()
	if s == "" {
		return value.FromList(nil), nil
	}
	parts := strings.Split(s, sep)
	items := make([]value.Value, len(parts))
	for i, p := range parts {
		items[i] = value.FromString(strings.TrimSpace(p))
	}
	return value.FromList(items), nil
}

func fnReplace(args []value.Value) (value.Value, error) {
	if err := arity(args, 3, 3); err != nil {
		return value.NullValue(), err
	}
	return value.FromString(strings.ReplaceAll(args[0].String(), args[1].String(), args[2].String())), nil
}

func fnSubstr(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 3); err != nil {
		return value.NullValue(), err
	}
	r := []rune(args[0].String())
	start, _ := args[1].AsInt()
	if start < 0 {
		start = int64(len(r)) + start
	}
	start = clamp(start, 0, int64(len(r)))
	end := int64(len(r))
	if len(args) == 3 {
		n, _ := args[2].AsInt()
		end = clamp(start+n, start, int64(len(r)))
	}
	return value.FromString(string(r[start:end])), nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fnEmpty(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	v := args[0]
	switch v.Kind() {
	case value.Null:
		return value.FromBool(true), nil
	case value.String, value.List, value.Map:
		return value.FromBool(v.Len() == 0), nil
	}
	return value.FromBool(false), nil
}

func fnDefault(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 2); err != nil {
		return value.NullValue(), err
	}
	if args[0].IsNull() || (args[0].Kind() == value.String && args[0].String() == "") {
		return args[1], nil
	}
	return args[0], nil
}

func fnKeys(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.NullValue(), err
	}
	keys := args[0].Keys()
	if args[0].Kind() != value.Map {
		keys = nil
	}
	items := make([]value.Value, len(keys))
	for i, k := range keys {
		items[i] = value.FromString(k)
	}
	return value.FromList(items), nil
}

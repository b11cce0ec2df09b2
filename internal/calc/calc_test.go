// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package calc

import (
	"errors"
	"strings"
	"testing"

	"nickandperla.net/tagx/internal/value"
)

type mapEnv map[string]value.Value

func (m mapEnv) Lookup(name string) (value.Value, bool, error) {
	parts := strings.Split(strings.TrimPrefix(name, "$"), ".")
	v, ok := m[parts[0]]
	if !ok {
		return value.NullValue(), false, nil
	}
	for _, f := range parts[1:] {
		if v, ok = v.Field(f); !ok {
			return value.NullValue(), false, nil
		}
	}
	return v, true, nil
}

func (m mapEnv) Call(name string, args []value.Value) (value.Value, bool, error) {
	if name == "twice" {
		i, _ := args[0].AsInt()
		return value.FromInt(i * 2), true, nil
	}
	return value.NullValue(), false, nil
}

func TestEval(t *testing.T) {
	env := mapEnv{
		"x":    value.FromInt(5),
		"name": value.FromString("tagx"),
		"user": value.FromMap(map[string]value.Value{"age": value.FromInt(30)}),
		"xs":   value.FromList([]value.Value{value.FromInt(1), value.FromInt(2), value.FromInt(3)}),
	}
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"10 / 4", "2.5"},
		{"10 / 5", "2"},
		{"7 % 3", "1"},
		{"-x + 1", "-4"},
		{"$x > 3", "true"},
		{"x >= 5 && x < 6", "true"},
		{"x == 4 or x == 5", "true"},
		{"not (x = 5)", "false"},
		{"!true", "false"},
		{`name + "!"`, "tagx!"},
		{`"a" + 1`, "a1"},
		{"user.age - 10", "20"},
		{"xs[1]", "2"},
		{"xs[9]", ""},
		{"[1, 2] + [3]", "1, 2, 3"},
		{"{a: 1, b: x}", "{a: 1, b: 5}"},
		{"len(xs)", "3"},
		{"upper(name)", "TAGX"},
		{"twice(x)", "10"},
		{"defined(nope)", "false"},
		{"defined(x)", "true"},
		{`contains(xs, 2)`, "true"},
		{`join(split("a, b", ","), "-")`, "a-b"},
		{`substr("hello", 1, 3)`, "ell"},
		{"round(1.256, 2)", "1.26"},
		{`default("", "fallback")`, "fallback"},
		{"max(3, 9, 4)", "9"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := Eval(tt.src, env)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.src, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.src, tt.want, got.String())
		}
	}
}

func TestShortCircuit(t *testing.T) {
	// the right side would fail with an undefined variable
	got, err := Eval("false && missing", mapEnv{})
	if err != nil || got.Truthy() {
		t.Errorf("expected false without error, got %v, %v", got, err)
	}
	got, err = Eval("true || missing", mapEnv{})
	if err != nil || !got.Truthy() {
		t.Errorf("expected true without error, got %v, %v", got, err)
	}
}

func TestUndefinedPolicies(t *testing.T) {
	_, err := Eval("missing", mapEnv{})
	if !errors.Is(err, ErrUndefined) {
		t.Errorf("expected ErrUndefined, got %v", err)
	}

	v, err := Eval("missing", mapEnv{}, WithUndefined(UndefinedNull))
	if err != nil || !v.IsNull() {
		t.Errorf("expected null, got %v (%v)", v, err)
	}

	v, err = Eval("hello", mapEnv{}, WithUndefined(UndefinedBareword))
	if err != nil || v.String() != "hello" {
		t.Errorf("expected bareword, got %v (%v)", v, err)
	}

	_, err = Eval("nosuch(1)", mapEnv{}, WithUndefined(UndefinedBareword))
	if !errors.Is(err, ErrUndefined) {
		t.Errorf("unknown functions always fail, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{"1 +", "(1", `"open`, "a b", "[1, 2", "{a 1}", "1 # 2"}
	for _, in := range inputs {
		_, err := Parse(in)
		var ce *Error
		if !errors.As(err, &ce) {
			t.Errorf("%q: expected *Error, got %v", in, err)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0", nil); err == nil {
		t.Error("expected division by zero error")
	}
}

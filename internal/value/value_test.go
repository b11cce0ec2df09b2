// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package value

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NullValue(), ""},
		{FromBool(true), "true"},
		{FromInt(-4), "-4"},
		{FromFloat(2.5), "2.5"},
		{FromString("hi"), "hi"},
		{FromList([]Value{FromInt(1), FromString("b")}), "1, b"},
		{FromMap(map[string]Value{"b": FromInt(2), "a": FromInt(1)}), "{a: 1, b: 2}"},
		{AreaRef(7), "7"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.v.Kind(), tt.want, got)
		}
	}
}

func TestTruthy(t *testing.T) {
	truthy := []Value{FromBool(true), FromInt(1), FromString("x"), FromList([]Value{NullValue()})}
	falsy := []Value{NullValue(), FromBool(false), FromInt(0), FromString(""), FromString("false"), FromString("0")}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Errorf("expected %v (%s) to be truthy", v, v.Kind())
		}
	}
	for _, v := range falsy {
		if v.Truthy() {
			t.Errorf("expected %v (%s) to be falsy", v, v.Kind())
		}
	}
}

func TestAsInt(t *testing.T) {
	if i, ok := FromString(" 12 ").AsInt(); !ok || i != 12 {
		t.Errorf("expected 12, got %d (%v)", i, ok)
	}
	if _, ok := FromFloat(1.5).AsInt(); ok {
		t.Error("1.5 must not coerce to int")
	}
	if _, ok := FromString("abc").AsInt(); ok {
		t.Error("abc must not coerce to int")
	}
}

func TestSeqOfMapIsSorted(t *testing.T) {
	m := FromMap(map[string]Value{"z": FromInt(26), "a": FromInt(1)})
	seq := m.Seq()
	if len(seq) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(seq))
	}
	k, _ := seq[0].Field("key")
	v, _ := seq[0].Field("value")
	if k.String() != "a" || v.String() != "1" {
		t.Errorf("unexpected first entry %v", seq[0])
	}
}

func TestEqualAndCompare(t *testing.T) {
	if !Equal(FromInt(2), FromFloat(2)) {
		t.Error("2 == 2.0")
	}
	if !Equal(FromString("2"), FromInt(2)) {
		t.Error(`"2" == 2 by string form`)
	}
	if Equal(NullValue(), FromString("")) {
		t.Error("null != empty string")
	}
	if Compare(FromString("10"), FromString("9")) <= 0 {
		t.Error("numeric strings compare numerically")
	}
	if Compare(FromString("apple"), FromString("banana")) >= 0 {
		t.Error("strings compare lexically")
	}
}

func TestMapSharedByReference(t *testing.T) {
	outer := NewMap()
	inner := NewMap()
	outer.SetField("inner", inner)
	inner.SetField("x", FromInt(1))

	got, _ := outer.Field("inner")
	x, ok := got.Field("x")
	if !ok || x.String() != "1" {
		t.Errorf("expected nested write to be visible, got %v", outer)
	}
}

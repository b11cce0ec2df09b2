// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scanner

import (
	"errors"
	"testing"

	"nickandperla.net/tagx/internal/token"
)

func TestNextSplitsTextAndTags(t *testing.T) {
	s := New(`a [@GET name=x] b [/@BLOCK] c`)

	var kinds []token.Kind
	for {
		item, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Kind == token.EOF {
			break
		}
		kinds = append(kinds, item.Kind)
	}

	want := []token.Kind{token.TEXT, token.OPEN, token.TEXT, token.CLOSE, token.TEXT}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d items, got %d (%v)", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("item %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestParseTagProperties(t *testing.T) {
	src := `[@LOOP count=3 index=i divider=", " items=[1, 2] cond='a b' local]`
	tag, err := ParseTag(src, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Name != "LOOP" || tag.Level != 0 || tag.Close {
		t.Fatalf("unexpected tag header: %+v", tag)
	}
	if tag.End != len(src) {
		t.Errorf("expected end %d, got %d", len(src), tag.End)
	}

	tests := []struct {
		name  string
		value string
	}{
		{"count", "3"},
		{"index", "i"},
		{"divider", ", "},
		{"items", "[1, 2]"},
		{"cond", "a b"},
	}
	for _, tt := range tests {
		p, ok := tag.Prop(tt.name)
		if !ok {
			t.Errorf("missing property %s", tt.name)
			continue
		}
		if p.Value != tt.value {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.value, p.Value)
		}
	}

	last := tag.Props[len(tag.Props)-1]
	if !last.Flag || last.Name != "local" {
		t.Errorf("expected trailing flag 'local', got %+v", last)
	}
}

func TestParseTagLevels(t *testing.T) {
	tag, err := ParseTag("[/@@@IF]", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tag.Close || tag.Level != 2 || tag.Name != "IF" {
		t.Errorf("unexpected tag: %+v", tag)
	}
}

func TestParseTagErrors(t *testing.T) {
	inputs := []string{
		"[@GET name=x",
		"[@]",
		"[/@BLOCK x]",
		`[@SET value="open]`,
	}
	for _, in := range inputs {
		_, err := ParseTag(in, 0)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%q: expected SyntaxError, got %v", in, err)
		}
	}
}

func TestFindOpenSkipsDeferredAndEscaped(t *testing.T) {
	src := `x [[@GET a] [@@GET b] [@GET c]`
	tag, err := FindOpen(src, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag == nil {
		t.Fatal("expected a tag")
	}
	if tag.Props[0].Name != "c" {
		t.Errorf("expected tag for c, got %+v", tag.Props)
	}
}

func TestMatchCloseNested(t *testing.T) {
	src := `[@BLOCK]a[@BLOCK]b[/@BLOCK][@@BLOCK]c[/@BLOCK]d`
	open, err := ParseTag(src, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bs, be, end, err := MatchClose(src, open)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := src[bs:be]; got != `a[@BLOCK]b[/@BLOCK][@@BLOCK]c` {
		t.Errorf("unexpected body %q", got)
	}
	if src[end:] != "d" {
		t.Errorf("unexpected rest %q", src[end:])
	}
}

func TestMatchCloseMissing(t *testing.T) {
	src := `[@BLOCK]a[@BLOCK]b[/@BLOCK]`
	open, _ := ParseTag(src, 0)
	if _, _, _, err := MatchClose(src, open); err == nil {
		t.Fatal("expected error for missing close tag")
	}
}

func TestRelevel(t *testing.T) {
	src := `[@A][@@B x=1][/@@B][[@C][@BOOKMARK name=t]`

	up, changed, err := Relevel(src, 1, "BOOKMARK")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected change")
	}
	if want := `[@@A][@@@B x=1][/@@@B][[@C][@BOOKMARK name=t]`; up != want {
		t.Errorf("demote: expected %q, got %q", want, up)
	}

	down, changed, err := Relevel(up, -1)
	if err != nil || !changed {
		t.Fatalf("decrement failed: changed=%v err=%v", changed, err)
	}
	if down != src {
		t.Errorf("decrement: expected %q, got %q", src, down)
	}

	_, changed, _ = Relevel("plain [@A]", -1)
	if changed {
		t.Error("level 0 tags must not change on decrement")
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		`a [@GET x] b`,
		`[/@BLOCK] and [[@already]`,
		`no markers [here]`,
		`[[[@deep]`,
	}
	for _, in := range inputs {
		esc := Escape(in)
		if tag, err := FindOpen(esc, 0); err != nil || tag != nil {
			t.Errorf("%q: escaped text still contains a tag (%v, %v)", in, tag, err)
		}
		if got := Unescape(esc); got != in {
			t.Errorf("round trip: expected %q, got %q", in, got)
		}
	}
}

func TestPosition(t *testing.T) {
	src := "ab\ncd[@X]"
	line, col := Position(src, 5)
	if line != 2 || col != 3 {
		t.Errorf("expected 2:3, got %d:%d", line, col)
	}
}

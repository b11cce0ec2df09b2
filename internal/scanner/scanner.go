// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner splits tagx text into text runs and bracket tags.
package scanner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"nickandperla.net/tagx/internal/token"
)

// SyntaxError is a malformed-tag error positioned at a byte offset.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Pos, e.Msg)
}

// Prop is one parsed tag property.
type Prop struct {
	Name   string
	Value  string
	Flag   bool // bare word without '='
	Quoted bool
}

// Tag is a parsed open or close marker.
type Tag struct {
	Start     int // offset of the first '['
	NameStart int // offset of the first name rune
	End       int // offset after the closing ']'
	Name      string
	Level     int // number of extra '@' characters
	Close     bool
	Raw       string // property text after the name, trimmed
	Props     []Prop
}

// Prop returns the property with the given name (case-insensitive).
func (t *Tag) Prop(name string) (Prop, bool) {
	for _, p := range t.Props {
		if !p.Flag && strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Prop{}, false
}

// Item is a scanned run of text or a tag.
type Item struct {
	Kind  token.Kind
	Value string
	Pos   int
	Tag   *Tag
}

// Scanner walks a string buffer item by item.
type Scanner struct {
	src string
	pos int
}

// New creates a Scanner over src starting at offset 0.
func New(src string) *Scanner {
	return &Scanner{src: src}
}

// NewAt creates a Scanner over src starting at offset pos.
func NewAt(src string, pos int) *Scanner {
	return &Scanner{src: src, pos: pos}
}

// Pos returns the current offset.
func (s *Scanner) Pos() int {
	return s.pos
}

// markerAt reports the marker that follows a '[' run ending at j: "@" for an
// open marker, "/@" for a close marker, "" otherwise.
func markerAt(src string, j int) string {
	if j < len(src) && src[j] == token.RuneAt {
		return "@"
	}
	if j+1 < len(src) && src[j] == token.RuneSlash && src[j+1] == token.RuneAt {
		return "/@"
	}
	return ""
}

// Next returns the next item from the buffer.
func (s *Scanner) Next() (*Item, error) {
	if s.pos >= len(s.src) {
		return &Item{Kind: token.EOF, Pos: len(s.src)}, nil
	}
	start := s.pos
	for i := s.pos; i < len(s.src); i++ {
		if s.src[i] != token.RuneLeft {
			continue
		}
		j := i
		for j < len(s.src) && s.src[j] == token.RuneLeft {
			j++
		}
		marker := markerAt(s.src, j)
		if marker == "" {
			i = j - 1
			continue
		}
		if j-i > 1 {
			// Escaped marker: emit pending text first
			if i > start {
				s.pos = i
				return &Item{Kind: token.TEXT, Value: s.src[start:i], Pos: start}, nil
			}
			end := j + len(marker)
			s.pos = end
			return &Item{Kind: token.ESCAPED, Value: s.src[i:end], Pos: i}, nil
		}
		if i > start {
			s.pos = i
			return &Item{Kind: token.TEXT, Value: s.src[start:i], Pos: start}, nil
		}
		tag, err := ParseTag(s.src, i)
		if err != nil {
			return nil, err
		}
		s.pos = tag.End
		kind := token.OPEN
		if tag.Close {
			kind = token.CLOSE
		}
		return &Item{Kind: kind, Value: s.src[i:tag.End], Pos: i, Tag: tag}, nil
	}
	s.pos = len(s.src)
	return &Item{Kind: token.TEXT, Value: s.src[start:], Pos: start}, nil
}

// ParseTag parses the tag whose '[' is at offset i.
func ParseTag(src string, i int) (*Tag, error) {
	t := &Tag{Start: i}
	p := i + 1
	if p < len(src) && src[p] == token.RuneSlash {
		t.Close = true
		p++
	}
	ats := 0
	for p < len(src) && src[p] == token.RuneAt {
		ats++
		p++
	}
	if ats == 0 {
		return nil, &SyntaxError{Pos: i, Msg: "not a tag marker"}
	}
	t.Level = ats - 1
	t.NameStart = p
	for p < len(src) {
		r, size := utf8.DecodeRuneInString(src[p:])
		if !token.IsNameRune(r) {
			break
		}
		p += size
	}
	t.Name = src[t.NameStart:p]
	if t.Name == "" {
		return nil, &SyntaxError{Pos: i, Msg: "missing tag name"}
	}

	if t.Close {
		for p < len(src) && (src[p] == ' ' || src[p] == '\t') {
			p++
		}
		if p >= len(src) || src[p] != token.RuneRight {
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("malformed close tag %q", t.Name)}
		}
		t.End = p + 1
		return t, nil
	}

	end, err := scanToClose(src, p)
	if err != nil {
		return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unterminated tag %q", t.Name)}
	}
	if end > p {
		r, _ := utf8.DecodeRuneInString(src[p:])
		if !unicode.IsSpace(r) {
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("invalid character %q after tag name %q", r, t.Name)}
		}
	}
	t.Raw = strings.TrimSpace(src[p:end])
	t.End = end + 1
	props, err := ParseProps(t.Raw)
	if err != nil {
		return nil, &SyntaxError{Pos: i, Msg: err.Error()}
	}
	t.Props = props
	return t, nil
}

// scanToClose finds the ']' ending a tag, skipping quoted text and balanced
// brackets and parentheses.
func scanToClose(src string, p int) (int, error) {
	depth := 0
	var quote byte
	for ; p < len(src); p++ {
		c := src[p]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case token.RuneQuote, token.RuneApos:
			quote = c
		case '[', '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case token.RuneRight:
			if depth == 0 {
				return p, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("unterminated")
}

// ParseProps parses raw property text into an ordered property list.
func ParseProps(raw string) ([]Prop, error) {
	var props []Prop
	p := 0
	for {
		for p < len(raw) && isSpace(raw[p]) {
			p++
		}
		if p >= len(raw) {
			return props, nil
		}
		if raw[p] == token.RuneQuote || raw[p] == token.RuneApos {
			val, next, err := quoted(raw, p)
			if err != nil {
				return nil, err
			}
			props = append(props, Prop{Name: val, Flag: true, Quoted: true})
			p = next
			continue
		}
		keyStart := p
		for p < len(raw) && !isSpace(raw[p]) && raw[p] != '=' {
			p++
		}
		key := raw[keyStart:p]
		if p >= len(raw) || raw[p] != '=' {
			props = append(props, Prop{Name: key, Flag: true})
			continue
		}
		p++ // '='
		if p < len(raw) && (raw[p] == token.RuneQuote || raw[p] == token.RuneApos) {
			val, next, err := quoted(raw, p)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}
			props = append(props, Prop{Name: key, Value: val, Quoted: true})
			p = next
			continue
		}
		valStart := p
		depth := 0
		var quote byte
		for ; p < len(raw); p++ {
			c := raw[p]
			if quote != 0 {
				if c == quote {
					quote = 0
				}
				continue
			}
			if c == token.RuneQuote || c == token.RuneApos {
				quote = c
				continue
			}
			if c == '[' || c == '(' {
				depth++
			} else if (c == ']' || c == ')') && depth > 0 {
				depth--
			} else if isSpace(c) && depth == 0 {
				break
			}
		}
		props = append(props, Prop{Name: key, Value: raw[valStart:p]})
	}
}

func quoted(raw string, p int) (string, int, error) {
	q := raw[p]
	end := strings.IndexByte(raw[p+1:], q)
	if end < 0 {
		return "", 0, fmt.Errorf("unterminated quoted value")
	}
	return raw[p+1 : p+1+end], p + end + 2, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// FindOpen returns the next level-0 tag (open or close) at or after pos, or
// nil when none remains. Deferred and escaped markers are skipped.
func FindOpen(src string, pos int) (*Tag, error) {
	s := NewAt(src, pos)
	for {
		item, err := s.Next()
		if err != nil {
			return nil, err
		}
		switch item.Kind {
		case token.EOF:
			return nil, nil
		case token.OPEN, token.CLOSE:
			if item.Tag.Level == 0 {
				return item.Tag, nil
			}
		}
	}
}

// MatchClose finds the close tag matching open, counting nested same-name
// tags of the same level. It returns the body span and the offset after the
// close marker.
func MatchClose(src string, open *Tag) (bodyStart, bodyEnd, end int, err error) {
	s := NewAt(src, open.End)
	depth := 1
	for {
		item, err := s.Next()
		if err != nil {
			return 0, 0, 0, err
		}
		switch item.Kind {
		case token.EOF:
			return 0, 0, 0, &SyntaxError{Pos: open.Start, Msg: fmt.Sprintf("missing close tag for %q", open.Name)}
		case token.OPEN, token.CLOSE:
			t := item.Tag
			if t.Level != open.Level || !strings.EqualFold(t.Name, open.Name) {
				continue
			}
			if t.Close {
				depth--
				if depth == 0 {
					return open.End, t.Start, t.End, nil
				}
			} else {
				depth++
			}
		}
	}
}

// Relevel adds delta to the level of every tag marker in src, clamping at 0.
// Tags named in except are left untouched. It reports whether any marker
// changed.
func Relevel(src string, delta int, except ...string) (string, bool, error) {
	s := New(src)
	var sb strings.Builder
	changed := false
	for {
		item, err := s.Next()
		if err != nil {
			return src, false, err
		}
		switch item.Kind {
		case token.EOF:
			if !changed {
				return src, false, nil
			}
			return sb.String(), true, nil
		case token.OPEN, token.CLOSE:
			t := item.Tag
			level := t.Level + delta
			if level < 0 {
				level = 0
			}
			if level == t.Level || skip(t.Name, except) {
				sb.WriteString(item.Value)
				continue
			}
			changed = true
			sb.WriteString(token.Prefix(t.Close, level))
			sb.WriteString(src[t.NameStart:t.End])
		default:
			sb.WriteString(item.Value)
		}
	}
}

func skip(name string, except []string) bool {
	for _, e := range except {
		if strings.EqualFold(name, e) {
			return true
		}
	}
	return false
}

// Escape adds one '[' to every marker run so no tag in src is interpreted.
func Escape(src string) string {
	return rewriteRuns(src, 1)
}

// Unescape removes one '[' from every escaped marker run.
func Unescape(src string) string {
	return rewriteRuns(src, -1)
}

func rewriteRuns(src string, delta int) string {
	if !strings.Contains(src, "@") {
		return src
	}
	var sb strings.Builder
	sb.Grow(len(src))
	last := 0
	for i := 0; i < len(src); i++ {
		if src[i] != token.RuneLeft {
			continue
		}
		j := i
		for j < len(src) && src[j] == token.RuneLeft {
			j++
		}
		if markerAt(src, j) != "" {
			run := j - i
			switch {
			case delta > 0:
				sb.WriteString(src[last:i])
				sb.WriteString(strings.Repeat("[", run+1))
				last = j
			case run > 1:
				sb.WriteString(src[last:i])
				sb.WriteString(strings.Repeat("[", run-1))
				last = j
			}
		}
		i = j - 1
	}
	sb.WriteString(src[last:])
	return sb.String()
}

// Position converts a byte offset into a 1-based line and column.
func Position(src string, pos int) (line, col int) {
	if pos > len(src) {
		pos = len(src)
	}
	line = 1 + strings.Count(src[:pos], "\n")
	lineStart := strings.LastIndexByte(src[:pos], '\n') + 1
	col = utf8.RuneCountInString(src[lineStart:pos]) + 1
	return line, col
}

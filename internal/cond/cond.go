// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package cond parses IF/ELSEIF/ELSE/ENDIF sequences and selects the branch
// to expand.
package cond

import (
	"errors"
	"fmt"
	"regexp"

	"nickandperla.net/tagx/internal/scanner"
)

var (
	// ErrMissingEndIf is wrapped when an IF has no matching ENDIF.
	ErrMissingEndIf = errors.New("missing ENDIF")
	// ErrOrder is wrapped when conditional tokens appear out of grammar order.
	ErrOrder = errors.New("conditional tokens out of order")
)

// Error is a positioned conditional parse error.
type Error struct {
	Pos int
	Msg string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Guard evaluates the condition carried by an IF or ELSEIF tag.
type Guard func(tag *scanner.Tag) (bool, error)

// Result describes the selected branch.
type Result struct {
	Body      string // raw text of the selected branch, empty when none
	BodyStart int    // offset of Body in the source text
	End       int    // offset after the ENDIF marker
	Selected  int    // branch index, -1 when no branch was selected
	Branches  int
}

type tokKind int

const (
	tokIf tokKind = iota
	tokElseIf
	tokElse
	tokEndIf
	tokLiteral
)

func (k tokKind) String() string {
	return [...]string{"IF", "ELSEIF", "ELSE", "ENDIF", "LITERAL"}[k]
}

var patterns = [...]*regexp.Regexp{
	tokIf:      regexp.MustCompile(`(?i)\[@IF[\s\]]`),
	tokElseIf:  regexp.MustCompile(`(?i)\[@ELSEIF[\s\]]`),
	tokElse:    regexp.MustCompile(`(?i)\[@ELSE\s*\]`),
	tokEndIf:   regexp.MustCompile(`(?i)\[/@IF\s*\]|\[@ENDIF\s*\]`),
	tokLiteral: regexp.MustCompile(`(?i)\[@LITERAL[\s\]]`),
}

// literalClose matches the end of a LITERAL body, whose text holds no tokens.
var literalClose = regexp.MustCompile(`(?i)\[/@LITERAL\s*\]`)

// finder locates one token kind. Queries must not move backwards.
type finder struct {
	re         *regexp.Regexp
	done       bool
	valid      bool
	start, end int
}

func (f *finder) find(src string, pos int) (int, int) {
	if f.done {
		return -1, -1
	}
	if f.valid && f.start >= pos {
		return f.start, f.end
	}
	p := pos
	for {
		loc := f.re.FindStringIndex(src[p:])
		if loc == nil {
			f.done = true
			return -1, -1
		}
		s, e := p+loc[0], p+loc[1]
		if s > 0 && src[s-1] == '[' {
			// escaped marker
			p = s + 1
			continue
		}
		f.start, f.end, f.valid = s, e, true
		return s, e
	}
}

type matcher struct {
	src     string
	finders [5]*finder
}

func newMatcher(src string) *matcher {
	m := &matcher{src: src}
	for i, re := range patterns {
		m.finders[i] = &finder{re: re}
	}
	return m
}

// next returns the earliest token at or after pos. LITERAL bodies are
// skipped.
func (m *matcher) next(pos int) (kind tokKind, start, end int, ok bool) {
	for {
		start = -1
		for k, f := range m.finders {
			s, e := f.find(m.src, pos)
			if s >= 0 && (start < 0 || s < start) {
				kind, start, end = tokKind(k), s, e
			}
		}
		if start < 0 || kind != tokLiteral {
			return kind, start, end, start >= 0
		}
		after, found := m.literalEnd(end)
		if !found {
			return kind, -1, -1, false
		}
		pos = after
	}
}

// literalEnd returns the offset after the close marker of a LITERAL whose
// body starts at pos, counting nested LITERAL tags.
func (m *matcher) literalEnd(pos int) (int, bool) {
	depth := 1
	for {
		c := literalClose.FindStringIndex(m.src[pos:])
		if c == nil {
			return 0, false
		}
		o := patterns[tokLiteral].FindStringIndex(m.src[pos:])
		if o != nil && o[0] < c[0] {
			depth++
			pos += o[1]
			continue
		}
		depth--
		pos += c[1]
		if depth == 0 {
			return pos, true
		}
	}
}

// skipNested returns the offset after the ENDIF closing the IF at start.
func (m *matcher) skipNested(start, end int) (int, error) {
	pos := end
	for {
		kind, s, e, ok := m.next(pos)
		if !ok {
			return 0, &Error{Pos: start, Msg: "missing ENDIF for nested IF", Err: ErrMissingEndIf}
		}
		switch kind {
		case tokIf:
			after, err := m.skipNested(s, e)
			if err != nil {
				return 0, err
			}
			pos = after
		case tokEndIf:
			return e, nil
		default:
			pos = e
		}
	}
}

type branch struct {
	tag        *scanner.Tag // nil for ELSE
	start, end int
}

// Parse reads the conditional whose IF tag starts at offset start and selects
// the first branch whose guard holds, or the ELSE branch. Guards run in order
// and stop at the first true one.
func Parse(src string, start int, guard Guard) (Result, error) {
	ifTag, err := scanner.ParseTag(src, start)
	if err != nil {
		return Result{}, err
	}
	m := newMatcher(src)
	branches := []branch{{tag: ifTag, start: ifTag.End}}
	seenElse := false
	pos := ifTag.End
	end := -1
	for end < 0 {
		kind, s, e, ok := m.next(pos)
		if !ok {
			return Result{}, &Error{Pos: start, Msg: "missing ENDIF", Err: ErrMissingEndIf}
		}
		cur := &branches[len(branches)-1]
		switch kind {
		case tokIf:
			after, err := m.skipNested(s, e)
			if err != nil {
				return Result{}, err
			}
			pos = after
			continue
		case tokEndIf:
			cur.end = s
			end = e
		case tokElseIf:
			if seenElse {
				return Result{}, &Error{Pos: s, Msg: "ELSEIF after ELSE", Err: ErrOrder}
			}
			tag, err := scanner.ParseTag(src, s)
			if err != nil {
				return Result{}, err
			}
			cur.end = s
			branches = append(branches, branch{tag: tag, start: tag.End})
			e = tag.End
		case tokElse:
			if seenElse {
				return Result{}, &Error{Pos: s, Msg: "duplicate ELSE", Err: ErrOrder}
			}
			seenElse = true
			cur.end = s
			branches = append(branches, branch{start: e})
		}
		pos = e
	}

	res := Result{End: end, Selected: -1, Branches: len(branches), BodyStart: end}
	for i, b := range branches {
		if b.tag != nil {
			ok, err := guard(b.tag)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				continue
			}
		}
		res.Selected = i
		res.Body = src[b.start:b.end]
		res.BodyStart = b.start
		break
	}
	return res, nil
}

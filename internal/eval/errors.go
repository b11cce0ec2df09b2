// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"nickandperla.net/tagx/internal/calc"
	"nickandperla.net/tagx/internal/cond"
	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/scope"
	"nickandperla.net/tagx/internal/script"
	"nickandperla.net/tagx/internal/store"
)

// ErrorKind classifies expansion errors.
type ErrorKind int

const (
	KindEval     ErrorKind = iota // missing property, bad value, expression failure
	KindParse                     // malformed tag, unterminated body, bad conditional
	KindSemantic                  // unknown tag, unbalanced scope stack
	KindResource                  // content store or engine pool failure
	KindTimeout                   // deadline exceeded or request cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindEval:
		return "evaluation"
	case KindParse:
		return "parse"
	case KindSemantic:
		return "semantic"
	case KindResource:
		return "resource"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Fatal reports whether errors of this kind abort the whole pass.
func (k ErrorKind) Fatal() bool {
	return k == KindParse || k == KindSemantic || k == KindTimeout
}

// ErrDeadline is wrapped by timeout errors raised by the request deadline.
var ErrDeadline = errors.New("response deadline exceeded")

// Error is a positioned expansion error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Tag  string
	Pos  int // byte offset in the text being expanded
	Line int
	Col  int
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" error")
	if e.Tag != "" {
		fmt.Fprintf(&sb, " in %s", e.Tag)
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line %d, column %d", e.Line, e.Col)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// missingProp is the error for an absent required property.
func missingProp(name string) *Error {
	return errorf(KindEval, "missing required property %q", name)
}

// classify converts any error raised while dispatching a tag into an *Error.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := KindEval
	var syn *scanner.SyntaxError
	var ce *cond.Error
	switch {
	case errors.As(err, &syn), errors.As(err, &ce):
		kind = KindParse
	case errors.Is(err, scope.ErrPopRoot):
		kind = KindSemantic
	case errors.Is(err, ErrDeadline), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.Is(err, store.ErrNotFound), errors.Is(err, script.ErrPoolExhausted):
		kind = KindResource
	}
	var calcErr *calc.Error
	if kind == KindEval && errors.As(err, &calcErr) && calcErr.Err != nil && !errors.Is(calcErr.Err, calc.ErrUndefined) {
		// host callbacks surface through calc errors
		if inner := classify(calcErr.Err); inner.Kind != KindEval {
			kind = inner.Kind
		}
	}
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

// ErrorFormat selects how inline error markers are rendered.
type ErrorFormat int

const (
	FormatHTML ErrorFormat = iota
	FormatPlain
)

// ParseErrorFormat maps "html" or "plain" to an ErrorFormat.
func ParseErrorFormat(s string) (ErrorFormat, bool) {
	switch strings.ToLower(s) {
	case "html", "":
		return FormatHTML, true
	case "plain", "text":
		return FormatPlain, true
	}
	return FormatHTML, false
}

// marker renders err as inline text. Marker runs are escaped so the message
// is never read back as a tag.
func (f ErrorFormat) marker(err *Error) string {
	var s string
	switch f {
	case FormatPlain:
		s = "[ERROR " + err.Error() + "]"
	default:
		s = `<span class="tagx-error" data-kind="` + err.Kind.String() + `">` + html.EscapeString(err.Error()) + `</span>`
	}
	return scanner.Escape(s)
}

// suggest returns the candidate closest to name, or "".
func suggest(name string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToUpper(name), strings.ToUpper(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best != "" {
		return best
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// unknownTag builds the semantic error for an unrecognized tag name.
func unknownTag(name string, candidates []string) *Error {
	e := errorf(KindSemantic, "unknown tag %s", name)
	if s := suggest(name, candidates); s != "" {
		e.Msg += fmt.Sprintf(" (did you mean %s?)", s)
	}
	return e
}

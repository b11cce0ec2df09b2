// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strconv"
	"strings"
	"time"

	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/token"
)

// SimpleFunc is a value-only tag: no properties, no body.
type SimpleFunc func(st *State) (string, error)

// ComplexFunc is a property-aware tag without a body.
type ComplexFunc func(st *State, p *Properties) (string, error)

// FullFunc is an inner-text tag. It receives the unexpanded body and decides
// itself whether to expand it.
type FullFunc func(st *State, body string, p *Properties) (string, error)

// getSimple returns the value-only builtin for name, or nil.
func getSimple(name string) SimpleFunc {
	switch name {
	case "AREA_ID":
		return builtinAreaID
	case "AREA_ALIAS":
		return builtinAreaAlias
	case "LANGUAGE_ID":
		return builtinLanguageID
	case "LANGUAGE_ALIAS":
		return builtinLanguageAlias
	case "VERSION_ID":
		return builtinVersionID
	case "NEWLINE":
		return builtinNewline
	case "TIMESTAMP":
		return builtinTimestamp
	case "ITERATION":
		return builtinIteration
	}
	return nil
}

// getComplex returns the property-aware builtin for name, or nil.
func getComplex(name string) ComplexFunc {
	switch name {
	case "VAR":
		return builtinVar
	case "SET":
		return builtinSet
	case "GET":
		return builtinGet
	case "EXPR":
		return builtinExpr
	case "TRACE":
		return builtinTrace
	case "BREAK":
		return builtinBreak
	case "LAST":
		return builtinLast
	case "RETURN":
		return builtinReturn
	case "BOOKMARK":
		return builtinBookmark
	case "SLOT":
		return builtinSlot
	case "SET_SLOT":
		return builtinSetSlot
	case "RESOURCE":
		return builtinResource
	case "DATE":
		return builtinDate
	case "LOCK_OUTPUT":
		return builtinLockOutput
	case "UNLOCK_OUTPUT":
		return builtinUnlockOutput
	}
	return nil
}

// getFull returns the inner-text builtin for name, or nil.
func getFull(name string) FullFunc {
	switch name {
	case "LOOP":
		return builtinLoop
	case "LIST":
		return builtinList
	case "BLOCK":
		return builtinBlock
	case "PROCEDURE":
		return builtinProcedure
	case "REM":
		return builtinRem
	case "PACK":
		return builtinPack
	case "LITERAL":
		return builtinLiteral
	case "INDENT":
		return builtinIndent
	case "NOINDENT":
		return builtinNoIndent
	case "REPLACE_BOOKMARK":
		return builtinReplaceBookmark
	case "INCLUDE_ONCE":
		return builtinIncludeOnce
	case "LANGUAGES":
		return builtinLanguages
	case "SCRIPT":
		return builtinScript
	case "MARKDOWN":
		return builtinMarkdown
	}
	return nil
}

// builtinNames lists every builtin tag, for suggestions.
var builtinNames = []string{
	"AREA_ID", "AREA_ALIAS", "LANGUAGE_ID", "LANGUAGE_ALIAS", "VERSION_ID",
	"NEWLINE", "TIMESTAMP", "ITERATION",
	"VAR", "SET", "GET", "EXPR", "TRACE", "BREAK", "LAST", "RETURN",
	"BOOKMARK", "SLOT", "SET_SLOT", "RESOURCE", "DATE", "LOCK_OUTPUT", "UNLOCK_OUTPUT",
	"LOOP", "LIST", "BLOCK", "PROCEDURE", "REM", "PACK", "LITERAL", "INDENT",
	"NOINDENT", "REPLACE_BOOKMARK", "INCLUDE_ONCE", "LANGUAGES", "SCRIPT", "MARKDOWN",
	"IF", "ELSEIF", "ELSE", "ENDIF", "CALL",
}

func isBuiltin(name string) bool {
	for _, n := range builtinNames {
		if n == name {
			return true
		}
	}
	return false
}

// dispatch runs the processor for tag and returns its output and the offset
// after the tag (or after its close marker).
func (st *State) dispatch(tag *scanner.Tag) (string, int, error) {
	if tag.Close {
		return "", tag.End, errorf(KindParse, "unexpected close tag %s", tag.Name)
	}
	name := strings.ToUpper(tag.Name)
	st.req.logger.Debug("dispatch", "tag", tag.Name, "state", st.index, "depth", st.req.stack.Depth())

	if fn := getSimple(name); fn != nil {
		if err := st.req.debugPoint(st, debug.SimpleTag, tag); err != nil {
			return "", tag.End, err
		}
		out, err := fn(st)
		return out, tag.End, err
	}
	if fn := getComplex(name); fn != nil {
		if err := st.req.debugPoint(st, debug.ComplexTag, tag); err != nil {
			return "", tag.End, err
		}
		out, err := fn(st, newProperties(st, tag))
		return out, tag.End, err
	}
	if fn := getFull(name); fn != nil {
		bodyStart, bodyEnd, end, err := scanner.MatchClose(st.text, tag)
		if err != nil {
			return "", tag.End, err
		}
		if err := st.req.debugPoint(st, debug.FullTag, tag); err != nil {
			return "", end, err
		}
		out, err := fn(st, st.text[bodyStart:bodyEnd], newProperties(st, tag))
		return out, end, err
	}
	switch name {
	case token.IF:
		return st.processIf(tag)
	case token.ELSEIF, token.ELSE, token.ENDIF:
		return "", tag.End, errorf(KindParse, "%s without IF", name)
	}
	return st.processCall(tag)
}

func builtinAreaID(st *State) (string, error) {
	return strconv.FormatInt(st.content.Area, 10), nil
}

func builtinAreaAlias(st *State) (string, error) {
	a, err := st.req.ev.store.Area(st.req.ctx, st.content.Area)
	if err != nil {
		return "", storeErr(err)
	}
	return a.Alias, nil
}

func builtinLanguageID(st *State) (string, error) {
	return st.language()
}

func builtinLanguageAlias(st *State) (string, error) {
	id, err := st.language()
	if err != nil {
		return "", err
	}
	l, err := st.req.ev.store.Language(st.req.ctx, id)
	if err != nil {
		return "", storeErr(err)
	}
	return l.Alias, nil
}

func builtinVersionID(st *State) (string, error) {
	return strconv.FormatInt(st.content.Version, 10), nil
}

func builtinNewline(st *State) (string, error) {
	return "\n", nil
}

func builtinTimestamp(st *State) (string, error) {
	return st.req.started.UTC().Format(time.RFC3339), nil
}

func builtinIteration(st *State) (string, error) {
	return strconv.Itoa(st.iteration()), nil
}

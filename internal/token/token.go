// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines tagx marker kinds and the bracket syntax constants.
package token

import (
	"strings"
	"unicode"
)

// Kind represents a scanned item kind.
type Kind int

const (
	EOF Kind = iota
	TEXT

	OPEN    // [@NAME ...]  - open or self-closing tag
	CLOSE   // [/@NAME]     - close tag
	ESCAPED // [[@ or [[/@  - escaped marker, always text
)

// Syntax runes.
const (
	RuneLeft  = '['
	RuneRight = ']'
	RuneAt    = '@' // one per level; a single @ is level 0
	RuneSlash = '/'
	RuneQuote = '"'
	RuneApos  = '\''
)

// Marker prefixes for level 0.
const (
	OpenMarker  = "[@"
	CloseMarker = "[/@"
)

// Private-use sentinels placed in the buffer by region tags. They are never
// part of a tag and are removed by the post-pass steps.
const (
	RuneBookmarkStart = '\uE000'
	RuneBookmarkEnd   = '\uE001'
	RuneNoIndentStart = '\uE002'
	RuneNoIndentEnd   = '\uE003'
	RunePackStart     = '\uE004'
	RunePackEnd       = '\uE005'
)

// Names of tags the driver treats structurally.
const (
	IF       = "IF"
	ELSEIF   = "ELSEIF"
	ELSE     = "ELSE"
	ENDIF    = "ENDIF"
	CALL     = "CALL"
	BOOKMARK = "BOOKMARK"
)

// String returns the string representation of a kind.
func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case TEXT:
		return "TEXT"
	case OPEN:
		return "OPEN"
	case CLOSE:
		return "CLOSE"
	case ESCAPED:
		return "ESCAPED"
	}
	return "UNKNOWN"
}

// IsTag returns true if the kind is a tag marker.
func (k Kind) IsTag() bool {
	return k == OPEN || k == CLOSE
}

// Prefix renders the marker prefix for a tag at the given level.
func Prefix(close bool, level int) string {
	if level < 0 {
		level = 0
	}
	var sb strings.Builder
	sb.WriteRune(RuneLeft)
	if close {
		sb.WriteRune(RuneSlash)
	}
	sb.WriteString(strings.Repeat(string(RuneAt), level+1))
	return sb.String()
}

// IsNameRune returns true if the rune may appear in a tag name.
func IsNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$' || r == '-'
}

// IsConditional returns true for the four tokens of an IF structure.
func IsConditional(name string) bool {
	switch strings.ToUpper(name) {
	case IF, ELSEIF, ELSE, ENDIF:
		return true
	}
	return false
}

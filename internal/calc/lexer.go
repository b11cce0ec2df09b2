// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package calc evaluates the expression language used in tag properties,
// conditions and scripts.
package calc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUndefined is wrapped by errors for unknown identifiers and functions.
var ErrUndefined = errors.New("undefined")

// Error is an expression error positioned at a byte offset.
type Error struct {
	Pos int
	Msg string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression offset %d: %s", e.Pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

type tokKind int

const (
	tEOF tokKind = iota
	tNum
	tStr
	tIdent
	tOp
	tLParen
	tRParen
	tLBrack
	tRBrack
	tLBrace
	tRBrace
	tComma
	tColon
)

type tok struct {
	kind tokKind
	text string
	pos  int
}

// twoCharOps are checked before single-character operators.
var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||", "<>"}

func lex(src string) ([]tok, error) {
	var toks []tok
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r >= '0' && r <= '9' || (r == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			seenDot := false
			for i < len(src) && (isDigit(src[i]) || (src[i] == '.' && !seenDot && i+1 < len(src) && isDigit(src[i+1]))) {
				if src[i] == '.' {
					seenDot = true
				}
				i++
			}
			toks = append(toks, tok{tNum, src[start:i], start})
		case r == '"' || r == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(src) {
				c := src[i]
				if c == '\\' && i+1 < len(src) {
					switch src[i+1] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(src[i+1])
					}
					i += 2
					continue
				}
				if c == byte(r) {
					closed = true
					i++
					break
				}
				sb.WriteByte(c)
				i++
			}
			if !closed {
				return nil, &Error{Pos: start, Msg: "unterminated string"}
			}
			toks = append(toks, tok{tStr, sb.String(), start})
		case isIdentStart(r):
			start := i
			i += size
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			toks = append(toks, tok{tIdent, strings.TrimSuffix(src[start:i], "."), start})
		default:
			start := i
			if i+1 < len(src) {
				two := src[i : i+2]
				matched := false
				for _, op := range twoCharOps {
					if two == op {
						toks = append(toks, tok{tOp, op, start})
						i += 2
						matched = true
						break
					}
				}
				if matched {
					continue
				}
			}
			i += size
			switch r {
			case '(':
				toks = append(toks, tok{tLParen, "(", start})
			case ')':
				toks = append(toks, tok{tRParen, ")", start})
			case '[':
				toks = append(toks, tok{tLBrack, "[", start})
			case ']':
				toks = append(toks, tok{tRBrack, "]", start})
			case '{':
				toks = append(toks, tok{tLBrace, "{", start})
			case '}':
				toks = append(toks, tok{tRBrace, "}", start})
			case ',':
				toks = append(toks, tok{tComma, ",", start})
			case ':':
				toks = append(toks, tok{tColon, ":", start})
			case '+', '-', '*', '/', '%', '<', '>', '!', '=':
				toks = append(toks, tok{tOp, string(r), start})
			default:
				return nil, &Error{Pos: start, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
		}
	}
	toks = append(toks, tok{tEOF, "", len(src)})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' || r == '.'
}

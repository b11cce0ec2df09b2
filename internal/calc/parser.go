// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package calc

import (
	"fmt"
	"strconv"
	"strings"

	"nickandperla.net/tagx/internal/value"
)

// Node is a parsed expression.
type Node interface {
	Pos() int
}

type (
	// Literal is a constant value.
	Literal struct {
		At    int
		Value value.Value
	}
	// Ident is a possibly dotted variable reference.
	Ident struct {
		At   int
		Name string
	}
	// Unary is a prefix operator application.
	Unary struct {
		At int
		Op string
		X  Node
	}
	// Binary is an infix operator application.
	Binary struct {
		At   int
		Op   string
		L, R Node
	}
	// CallExpr is a function call.
	CallExpr struct {
		At   int
		Name string
		Args []Node
	}
	// Index is a list or map subscript.
	Index struct {
		At  int
		X   Node
		Key Node
	}
	// ListLit is a list literal.
	ListLit struct {
		At    int
		Items []Node
	}
	// MapLit is a map literal.
	MapLit struct {
		At     int
		Keys   []string
		Values []Node
	}
)

func (n *Literal) Pos() int  { return n.At }
func (n *Ident) Pos() int    { return n.At }
func (n *Unary) Pos() int    { return n.At }
func (n *Binary) Pos() int   { return n.At }
func (n *CallExpr) Pos() int { return n.At }
func (n *Index) Pos() int    { return n.At }
func (n *ListLit) Pos() int  { return n.At }
func (n *MapLit) Pos() int   { return n.At }

// binding power of infix operators
func lbp(t tok) int {
	if t.kind != tOp && t.kind != tIdent {
		return 0
	}
	switch strings.ToLower(t.text) {
	case "||", "or":
		return 20
	case "&&", "and":
		return 30
	case "==", "!=", "=", "<>":
		return 40
	case "<", "<=", ">", ">=":
		return 50
	case "+", "-":
		return 60
	case "*", "/", "%":
		return 70
	}
	return 0
}

type parser struct {
	toks []tok
	i    int
}

// Parse parses src into an expression tree.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tEOF {
		return &Literal{Value: value.NullValue()}, nil
	}
	n, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, &Error{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return n, nil
}

func (p *parser) peek() tok { return p.toks[p.i] }

func (p *parser) next() tok {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

func (p *parser) need(k tokKind, what string) (tok, error) {
	t := p.next()
	if t.kind != k {
		return t, &Error{Pos: t.pos, Msg: fmt.Sprintf("expected %s, got %q", what, t.text)}
	}
	return t, nil
}

func (p *parser) expr(minBP int) (Node, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		left, err = p.postfix(left)
		if err != nil {
			return nil, err
		}
		t := p.peek()
		bp := lbp(t)
		if bp == 0 || bp <= minBP {
			return left, nil
		}
		p.next()
		right, err := p.expr(bp)
		if err != nil {
			return nil, err
		}
		left = &Binary{At: t.pos, Op: normalizeOp(t.text), L: left, R: right}
	}
}

func normalizeOp(op string) string {
	switch strings.ToLower(op) {
	case "or":
		return "||"
	case "and":
		return "&&"
	case "=":
		return "=="
	case "<>":
		return "!="
	}
	return op
}

func (p *parser) prefix() (Node, error) {
	t := p.next()
	switch t.kind {
	case tNum:
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, &Error{Pos: t.pos, Msg: "bad number " + t.text}
			}
			return &Literal{At: t.pos, Value: value.FromFloat(f)}, nil
		}
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &Error{Pos: t.pos, Msg: "bad number " + t.text}
		}
		return &Literal{At: t.pos, Value: value.FromInt(i)}, nil
	case tStr:
		return &Literal{At: t.pos, Value: value.FromString(t.text)}, nil
	case tIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return &Literal{At: t.pos, Value: value.FromBool(true)}, nil
		case "false":
			return &Literal{At: t.pos, Value: value.FromBool(false)}, nil
		case "null", "nil":
			return &Literal{At: t.pos, Value: value.NullValue()}, nil
		case "not":
			x, err := p.expr(80)
			if err != nil {
				return nil, err
			}
			return &Unary{At: t.pos, Op: "!", X: x}, nil
		}
		if p.peek().kind == tLParen {
			p.next()
			args, err := p.list(tRParen, ")")
			if err != nil {
				return nil, err
			}
			return &CallExpr{At: t.pos, Name: t.text, Args: args}, nil
		}
		return &Ident{At: t.pos, Name: t.text}, nil
	case tOp:
		if t.text == "-" || t.text == "!" || t.text == "+" {
			x, err := p.expr(80)
			if err != nil {
				return nil, err
			}
			return &Unary{At: t.pos, Op: t.text, X: x}, nil
		}
	case tLParen:
		x, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(tRParen, ")"); err != nil {
			return nil, err
		}
		return x, nil
	case tLBrack:
		items, err := p.list(tRBrack, "]")
		if err != nil {
			return nil, err
		}
		return &ListLit{At: t.pos, Items: items}, nil
	case tLBrace:
		return p.mapLit(t)
	case tEOF:
		return nil, &Error{Pos: t.pos, Msg: "unexpected end of expression"}
	}
	return nil, &Error{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
}

func (p *parser) postfix(left Node) (Node, error) {
	for p.peek().kind == tLBrack {
		open := p.next()
		key, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(tRBrack, "]"); err != nil {
			return nil, err
		}
		left = &Index{At: open.pos, X: left, Key: key}
	}
	return left, nil
}

func (p *parser) list(end tokKind, endText string) ([]Node, error) {
	var items []Node
	if p.peek().kind == end {
		p.next()
		return items, nil
	}
	for {
		n, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
		t := p.next()
		if t.kind == end {
			return items, nil
		}
		if t.kind != tComma {
			return nil, &Error{Pos: t.pos, Msg: fmt.Sprintf("expected , or %s, got %q", endText, t.text)}
		}
	}
}

func (p *parser) mapLit(open tok) (Node, error) {
	m := &MapLit{At: open.pos}
	if p.peek().kind == tRBrace {
		p.next()
		return m, nil
	}
	for {
		k := p.next()
		if k.kind != tIdent && k.kind != tStr && k.kind != tNum {
			return nil, &Error{Pos: k.pos, Msg: fmt.Sprintf("expected map key, got %q", k.text)}
		}
		if _, err := p.need(tColon, ":"); err != nil {
			return nil, err
		}
		v, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, k.text)
		m.Values = append(m.Values, v)
		t := p.next()
		if t.kind == tRBrace {
			return m, nil
		}
		if t.kind != tComma {
			return nil, &Error{Pos: t.pos, Msg: fmt.Sprintf("expected , or }, got %q", t.text)}
		}
	}
}

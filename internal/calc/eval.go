// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package calc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"nickandperla.net/tagx/internal/value"
)

// Env resolves identifiers and host functions.
type Env interface {
	// Lookup returns the value of a possibly dotted variable name.
	Lookup(name string) (value.Value, bool, error)
	// Call invokes a host function. ok is false when no such function exists.
	Call(name string, args []value.Value) (v value.Value, ok bool, err error)
}

// Undefined selects how unknown identifiers evaluate.
type Undefined int

const (
	UndefinedError     Undefined = iota // evaluation error wrapping ErrUndefined
	UndefinedNull                       // null
	UndefinedBareword                   // the identifier's own text
)

// Evaluator evaluates parsed expressions against an Env.
type Evaluator struct {
	env       Env
	undefined Undefined
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithUndefined sets the unknown-identifier policy.
func WithUndefined(u Undefined) Option {
	return func(e *Evaluator) { e.undefined = u }
}

// New creates an Evaluator. A nil env resolves nothing.
func New(env Env, opts ...Option) *Evaluator {
	if env == nil {
		env = emptyEnv{}
	}
	e := &Evaluator{env: env}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval parses and evaluates src.
func (e *Evaluator) Eval(src string) (value.Value, error) {
	n, err := Parse(src)
	if err != nil {
		return value.NullValue(), err
	}
	return e.EvalNode(n)
}

// Eval is a convenience wrapper around New(env, opts...).Eval(src).
func Eval(src string, env Env, opts ...Option) (value.Value, error) {
	return New(env, opts...).Eval(src)
}

// EvalNode evaluates a parsed expression.
func (e *Evaluator) EvalNode(n Node) (value.Value, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil
	case *Ident:
		v, ok, err := e.env.Lookup(n.Name)
		if err != nil {
			return value.NullValue(), err
		}
		if ok {
			return v, nil
		}
		switch e.undefined {
		case UndefinedNull:
			return value.NullValue(), nil
		case UndefinedBareword:
			return value.FromString(n.Name), nil
		}
		return value.NullValue(), &Error{Pos: n.At, Msg: "undefined variable " + n.Name, Err: ErrUndefined}
	case *Unary:
		x, err := e.EvalNode(n.X)
		if err != nil {
			return x, err
		}
		switch n.Op {
		case "!":
			return value.FromBool(!x.Truthy()), nil
		case "+":
			return x, nil
		}
		if x.Kind() == value.Int {
			i, _ := x.AsInt()
			return value.FromInt(-i), nil
		}
		f, ok := x.AsFloat()
		if !ok {
			return value.NullValue(), &Error{Pos: n.At, Msg: fmt.Sprintf("cannot negate %q", x.String())}
		}
		return number(-f), nil
	case *Binary:
		return e.binary(n)
	case *CallExpr:
		return e.call(n)
	case *Index:
		x, err := e.EvalNode(n.X)
		if err != nil {
			return x, err
		}
		k, err := e.EvalNode(n.Key)
		if err != nil {
			return k, err
		}
		return index(x, k), nil
	case *ListLit:
		items := make([]value.Value, len(n.Items))
		for i, it := range n.Items {
			v, err := e.EvalNode(it)
			if err != nil {
				return v, err
			}
			items[i] = v
		}
		return value.FromList(items), nil
	case *MapLit:
		m := value.NewMap()
		for i, k := range n.Keys {
			v, err := e.EvalNode(n.Values[i])
			if err != nil {
				return v, err
			}
			m.SetField(k, v)
		}
		return m, nil
	}
	return value.NullValue(), fmt.Errorf("calc: unknown node %T", n)
}

func index(x, k value.Value) value.Value {
	switch x.Kind() {
	case value.List:
		i, ok := k.AsInt()
		items := x.List()
		if !ok || i < 0 || int(i) >= len(items) {
			return value.NullValue()
		}
		return items[i]
	case value.Map:
		v, _ := x.Field(k.String())
		return v
	case value.String:
		i, ok := k.AsInt()
		r := []rune(x.String())
		if !ok || i < 0 || int(i) >= len(r) {
			return value.NullValue()
		}
		return value.FromString(string(r[i]))
	}
	return value.NullValue()
}

func (e *Evaluator) binary(n *Binary) (value.Value, error) {
	l, err := e.EvalNode(n.L)
	if err != nil {
		return l, err
	}
	// short-circuit operators evaluate the right side lazily
	switch n.Op {
	case "&&":
		if !l.Truthy() {
			return value.FromBool(false), nil
		}
		r, err := e.EvalNode(n.R)
		return value.FromBool(r.Truthy()), err
	case "||":
		if l.Truthy() {
			return value.FromBool(true), nil
		}
		r, err := e.EvalNode(n.R)
		return value.FromBool(r.Truthy()), err
	}
	r, err := e.EvalNode(n.R)
	if err != nil {
		return r, err
	}
	switch n.Op {
	case "==":
		return value.FromBool(value.Equal(l, r)), nil
	case "!=":
		return value.FromBool(!value.Equal(l, r)), nil
	case "<":
		return value.FromBool(value.Compare(l, r) < 0), nil
	case "<=":
		return value.FromBool(value.Compare(l, r) <= 0), nil
	case ">":
		return value.FromBool(value.Compare(l, r) > 0), nil
	case ">=":
		return value.FromBool(value.Compare(l, r) >= 0), nil
	case "+":
		if l.Kind() == value.List {
			return value.FromList(append(append([]value.Value{}, l.List()...), r.Seq()...)), nil
		}
		if l.Kind() != value.String && r.Kind() != value.String {
			if v, ok := arith(n.Op, l, r); ok {
				return v, nil
			}
		}
		return value.FromString(l.String() + r.String()), nil
	}
	v, ok := arith(n.Op, l, r)
	if !ok {
		return value.NullValue(), &Error{Pos: n.At, Msg: fmt.Sprintf("invalid operands %q %s %q", l.String(), n.Op, r.String())}
	}
	if v.Kind() == value.Null {
		return v, &Error{Pos: n.At, Msg: "division by zero"}
	}
	return v, nil
}

// arith applies a numeric operator. Division by zero yields null.
func arith(op string, l, r value.Value) (value.Value, bool) {
	if l.Kind() == value.Int && r.Kind() == value.Int || isIntText(l) && isIntText(r) {
		a, aok := l.AsInt()
		b, bok := r.AsInt()
		if aok && bok {
			switch op {
			case "+":
				return value.FromInt(a + b), true
			case "-":
				return value.FromInt(a - b), true
			case "*":
				return value.FromInt(a * b), true
			case "/":
				if b == 0 {
					return value.NullValue(), true
				}
				if a%b == 0 {
					return value.FromInt(a / b), true
				}
				return value.FromFloat(float64(a) / float64(b)), true
			case "%":
				if b == 0 {
					return value.NullValue(), true
				}
				return value.FromInt(a % b), true
			}
		}
	}
	a, aok := l.AsFloat()
	b, bok := r.AsFloat()
	if !aok || !bok {
		return value.NullValue(), false
	}
	switch op {
	case "+":
		return number(a + b), true
	case "-":
		return number(a - b), true
	case "*":
		return number(a * b), true
	case "/":
		if b == 0 {
			return value.NullValue(), true
		}
		return number(a / b), true
	case "%":
		if b == 0 {
			return value.NullValue(), true
		}
		return number(math.Mod(a, b)), true
	}
	return value.NullValue(), false
}

func isIntText(v value.Value) bool {
	if v.Kind() != value.String {
		return false
	}
	_, ok := v.AsInt()
	return ok && !strings.Contains(v.String(), ".")
}

func number(f float64) value.Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return value.FromInt(int64(f))
	}
	return value.FromFloat(f)
}

func (e *Evaluator) call(n *CallExpr) (value.Value, error) {
	name := strings.ToLower(n.Name)
	if name == "defined" {
		if len(n.Args) != 1 {
			return value.NullValue(), &Error{Pos: n.At, Msg: "defined takes one argument"}
		}
		if id, ok := n.Args[0].(*Ident); ok {
			_, found, err := e.env.Lookup(id.Name)
			return value.FromBool(found), err
		}
		v, err := e.EvalNode(n.Args[0])
		return value.FromBool(!v.IsNull()), err
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := e.EvalNode(a)
		if err != nil {
			return v, err
		}
		args[i] = v
	}
	v, ok, err := e.env.Call(n.Name, args)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return v, err
		}
		return v, &Error{Pos: n.At, Msg: fmt.Sprintf("%s: %v", n.Name, err), Err: err}
	}
	if ok {
		return v, nil
	}
	fn, ok := builtins[name]
	if !ok {
		return value.NullValue(), &Error{Pos: n.At, Msg: "undefined function " + n.Name, Err: ErrUndefined}
	}
	v, err = fn(args)
	if err != nil {
		return v, &Error{Pos: n.At, Msg: fmt.Sprintf("%s: %v", n.Name, err), Err: err}
	}
	return v, nil
}

type emptyEnv struct{}

func (emptyEnv) Lookup(string) (value.Value, bool, error) { return value.NullValue(), false, nil }

func (emptyEnv) Call(string, []value.Value) (value.Value, bool, error) {
	return value.NullValue(), false, nil
}

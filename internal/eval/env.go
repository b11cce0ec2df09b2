// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"fmt"
	"strings"

	"nickandperla.net/tagx/internal/calc"
	"nickandperla.net/tagx/internal/scope"
	"nickandperla.net/tagx/internal/value"
)

// env resolves expression identifiers against the scope stack starting at a
// fixed frame, and host functions against the state's content context.
type env struct {
	st   *State
	from int
}

func (st *State) calc(from int, undefined calc.Undefined) *calc.Evaluator {
	return calc.New(env{st: st, from: from}, calc.WithUndefined(undefined))
}

// evalExpr evaluates src in the current scope.
func (st *State) evalExpr(src string, undefined calc.Undefined) (value.Value, error) {
	if code, ok := scriptCode(strings.TrimSpace(src)); ok {
		return st.runScript(code)
	}
	return st.calc(st.req.stack.Depth()-1, undefined).Eval(src)
}

func (e env) Lookup(name string) (value.Value, bool, error) {
	return e.st.lookup(e.from, name)
}

// lookup reads a possibly dotted variable path, searching down from frame
// from.
func (st *State) lookup(from int, path string) (value.Value, bool, error) {
	stack := st.req.stack
	parts := strings.Split(scope.Normalize(path), ".")
	ref, ok, err := stack.LookupFrom(from, parts[0])
	if err != nil || !ok {
		return value.NullValue(), false, err
	}
	v, ok := stack.Load(ref)
	if !ok {
		return value.NullValue(), false, nil
	}
	for _, field := range parts[1:] {
		if v, ok = v.Field(field); !ok {
			return value.NullValue(), false, nil
		}
	}
	return v, true, nil
}

func (e env) Call(name string, args []value.Value) (value.Value, bool, error) {
	st := e.st
	arg := func(i int) value.Value {
		if i < len(args) {
			return args[i]
		}
		return value.NullValue()
	}
	switch strings.ToLower(name) {
	case "slot":
		s, err := st.slotValue(arg(0).String(), st.content.Area, slotOptions{})
		if err != nil {
			return value.NullValue(), true, err
		}
		return value.FromString(s), true, nil
	case "area":
		id, err := st.resolveArea(arg(0))
		if err != nil {
			return value.NullValue(), true, err
		}
		return value.AreaRef(id), true, nil
	case "area_id":
		return value.AreaRef(st.content.Area), true, nil
	case "language":
		return value.FromString(st.content.Language), true, nil
	case "version":
		return value.FromInt(st.content.Version), true, nil
	case "iteration":
		return value.FromInt(int64(st.iteration())), true, nil
	case "resource":
		v, err := st.resourceText(arg(0).String(), st.content.Area)
		return value.FromString(v), true, err
	case "expand":
		s, err := st.expand(arg(0).String())
		return value.FromString(s), true, err
	case "call":
		if len(args) == 0 {
			return value.NullValue(), true, fmt.Errorf("call needs a procedure name")
		}
		v, err := st.callValue(args[0].String(), args[1:])
		return v, true, err
	}
	return value.NullValue(), false, nil
}

// iteration returns the 1-based cursor of the innermost list frame.
func (st *State) iteration() int {
	if f := st.req.stack.NearestList(); f != nil {
		return f.List.Cursor
	}
	return 0
}

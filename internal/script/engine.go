// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package script runs the embedded scripting sub-language: statements of
// assignments and expressions that call back into the interpreter.
package script

import (
	"errors"
	"fmt"
	"strings"

	"nickandperla.net/tagx/internal/calc"
	"nickandperla.net/tagx/internal/value"
)

// ErrUnbound is returned when an engine runs without a host.
var ErrUnbound = errors.New("script: engine has no host bound")

// Host is the interpreter surface reachable from scripts.
type Host interface {
	Get(name string) (value.Value, bool, error)
	Set(name string, v value.Value) error
	Slot(name string) (value.Value, error)
	Area(id value.Value) (value.Value, error)
	Resource(name string) (value.Value, error)
	Expand(text string) (string, error)
	Print(text string)
}

// Engine evaluates script code against a bound host.
type Engine struct {
	id   int
	host Host
}

// ID returns the engine's pool slot.
func (e *Engine) ID() int { return e.id }

// Bind attaches a host for subsequent evaluations.
func (e *Engine) Bind(h Host) { e.host = h }

// Evaluate runs code and returns the value of its last statement.
func (e *Engine) Evaluate(code string) (value.Value, error) {
	if e.host == nil {
		return value.NullValue(), ErrUnbound
	}
	ev := calc.New(hostEnv{e.host})
	result := value.NullValue()
	for _, stmt := range Split(code) {
		name, expr, assign := assignment(stmt)
		v, err := ev.Eval(expr)
		if err != nil {
			return value.NullValue(), fmt.Errorf("script: %q: %w", strings.TrimSpace(stmt), err)
		}
		if assign {
			if err := e.host.Set(name, v); err != nil {
				return value.NullValue(), err
			}
		}
		result = v
	}
	return result, nil
}

// Split breaks code into statements on ';' and newlines outside strings and
// brackets. Empty statements and '#' comment lines are dropped.
func Split(code string) []string {
	var out []string
	var quote byte
	depth := 0
	start := 0
	flush := func(end int) {
		stmt := strings.TrimSpace(code[start:end])
		if stmt != "" && !strings.HasPrefix(stmt, "#") {
			out = append(out, stmt)
		}
		start = end + 1
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ';', '\n':
			if depth == 0 {
				flush(i)
			}
		}
	}
	if start < len(code) {
		flush(len(code))
	}
	return out
}

// assignment splits "name = expr". Comparison operators are not assignments.
func assignment(stmt string) (name, expr string, ok bool) {
	i := strings.IndexByte(stmt, '=')
	if i <= 0 || (i+1 < len(stmt) && stmt[i+1] == '=') {
		return "", stmt, false
	}
	switch stmt[i-1] {
	case '!', '<', '>', '=':
		return "", stmt, false
	}
	lhs := strings.TrimSpace(stmt[:i])
	if lhs == "" {
		return "", stmt, false
	}
	for j, r := range lhs {
		ident := r == '_' || r == '$' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (j > 0 && r >= '0' && r <= '9')
		if !ident {
			return "", stmt, false
		}
	}
	return lhs, stmt[i+1:], true
}

// Bindings lists the host functions available to scripts.
var Bindings = []string{"get", "set", "slot", "area", "resource", "expand", "print"}

type hostEnv struct{ h Host }

func (e hostEnv) Lookup(name string) (value.Value, bool, error) {
	return e.h.Get(name)
}

func (e hostEnv) Call(name string, args []value.Value) (value.Value, bool, error) {
	arg := func(i int) value.Value {
		if i < len(args) {
			return args[i]
		}
		return value.NullValue()
	}
	switch strings.ToLower(name) {
	case "get":
		v, _, err := e.h.Get(arg(0).String())
		return v, true, err
	case "set":
		if len(args) != 2 {
			return value.NullValue(), true, fmt.Errorf("set takes 2 arguments, got %d", len(args))
		}
		return args[1], true, e.h.Set(args[0].String(), args[1])
	case "slot":
		v, err := e.h.Slot(arg(0).String())
		return v, true, err
	case "area":
		v, err := e.h.Area(arg(0))
		return v, true, err
	case "resource":
		v, err := e.h.Resource(arg(0).String())
		return v, true, err
	case "expand":
		s, err := e.h.Expand(arg(0).String())
		return value.FromString(s), true, err
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		e.h.Print(strings.Join(parts, ""))
		return value.NullValue(), true, nil
	}
	return value.NullValue(), false, nil
}

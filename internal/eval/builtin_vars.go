// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"nickandperla.net/tagx/internal/debug"
)

// builtinVar creates a variable in the top frame, in the frame level steps
// below it, or in the global frame.
func builtinVar(st *State, p *Properties) (string, error) {
	name, err := p.RequiredName("name")
	if err != nil {
		return "", err
	}
	v, err := p.Value("value")
	if err != nil {
		return "", err
	}
	stack := st.req.stack
	depth := stack.Depth() - 1
	global, err := p.Bool("global", false)
	if err != nil {
		return "", err
	}
	if global {
		depth = 0
	} else {
		level, err := p.Int("level", 0)
		if err != nil {
			return "", err
		}
		if level < 0 {
			return "", errorf(KindEval, "level must not be negative, got %d", level)
		}
		depth -= int(level)
		if depth < 0 {
			depth = 0
		}
	}
	return "", stack.Declare(depth, name, v)
}

// builtinSet assigns an expression to a possibly dotted variable path.
func builtinSet(st *State, p *Properties) (string, error) {
	name, err := p.RequiredName("name")
	if err != nil {
		return "", err
	}
	v, err := p.Value("value")
	if err != nil {
		return "", err
	}
	return "", st.req.stack.Set(name, v)
}

func builtinGet(st *State, p *Properties) (string, error) {
	name, err := p.RequiredName("name")
	if err != nil {
		return "", err
	}
	v, ok, err := st.req.stack.Get(name)
	if err != nil {
		return "", err
	}
	if !ok {
		if p.Has("default") {
			return p.Text("default", "")
		}
		return "", errorf(KindEval, "undefined variable %s", name)
	}
	return v.String(), nil
}

func builtinExpr(st *State, p *Properties) (string, error) {
	v, err := p.RequiredValue("value")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func builtinTrace(st *State, p *Properties) (string, error) {
	v, err := p.Value("value")
	if err != nil {
		return "", err
	}
	s := v.String()
	st.req.trace = append(st.req.trace, s)
	st.req.logger.Debug("trace", "value", s, "depth", st.req.stack.Depth())
	return "", nil
}

func builtinBreak(st *State, p *Properties) (string, error) {
	return "", st.req.debugPoint(st, debug.Breakpoint, p.Tag())
}

// builtinLast stops the innermost loop or list after the current iteration.
func builtinLast(st *State, p *Properties) (string, error) {
	f := st.req.stack.NearestLoop()
	if f == nil {
		return "", errorf(KindEval, "LAST outside LOOP or LIST")
	}
	discard, err := p.Bool("discard", false)
	if err != nil {
		return "", err
	}
	f.Loop.Breaked = true
	f.Loop.Discard = f.Loop.Discard || discard
	return "", nil
}

// builtinReturn sets the value of the innermost procedure call.
func builtinReturn(st *State, p *Properties) (string, error) {
	_, f := st.req.stack.NearestCall()
	if f == nil {
		return "", errorf(KindEval, "RETURN outside PROCEDURE")
	}
	v, err := p.Value("value")
	if err != nil {
		return "", err
	}
	f.Call.Result = v
	return "", nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"errors"

	"nickandperla.net/tagx/internal/scope"
	"nickandperla.net/tagx/internal/script"
	"nickandperla.net/tagx/internal/store"
	"nickandperla.net/tagx/internal/value"
)

// runScript evaluates code on a pooled engine bound to this state.
func (st *State) runScript(code string) (value.Value, error) {
	ev := st.req.ev
	engine, err := ev.pool.Acquire(st.req.ctx, ev.acquireTimeout)
	if err != nil {
		if errors.Is(err, script.ErrPoolExhausted) {
			return value.NullValue(), &Error{Kind: KindResource, Msg: err.Error(), Err: err}
		}
		return value.NullValue(), err
	}
	defer ev.pool.Release(engine)
	engine.Bind(scriptHost{st})
	defer engine.Bind(nil)
	st.req.logger.Debug("script", "engine", engine.ID(), "bytes", len(code))
	return engine.Evaluate(code)
}

// builtinScript runs its body as script code. The output is whatever the
// script printed.
func builtinScript(st *State, body string, p *Properties) (string, error) {
	stack := st.req.stack
	f := scope.NewScriptFrame("script")
	stack.Push(f)
	_, err := st.runScript(body)
	if perr := stack.Pop(p.Flag("transparent")); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return "", err
	}
	return f.Script.Output.String(), nil
}

// scriptHost exposes the interpreter to scripts.
type scriptHost struct{ st *State }

func (h scriptHost) Get(name string) (value.Value, bool, error) {
	return h.st.lookup(h.st.req.stack.Depth()-1, name)
}

func (h scriptHost) Set(name string, v value.Value) error {
	return h.st.req.stack.Set(name, v)
}

func (h scriptHost) Slot(name string) (value.Value, error) {
	s, err := h.st.slotValue(name, h.st.content.Area, slotOptions{})
	if errors.Is(err, store.ErrNotFound) {
		return value.NullValue(), nil
	}
	if err != nil {
		return value.NullValue(), storeErr(err)
	}
	return value.FromString(s), nil
}

func (h scriptHost) Area(id value.Value) (value.Value, error) {
	areaID, err := h.st.resolveArea(id)
	if err != nil {
		return value.NullValue(), err
	}
	a, err := h.st.req.ev.store.Area(h.st.req.ctx, areaID)
	if err != nil {
		return value.NullValue(), storeErr(err)
	}
	return value.FromMap(map[string]value.Value{
		"id":     value.AreaRef(a.ID),
		"alias":  value.FromString(a.Alias),
		"name":   value.FromString(a.Name),
		"parent": value.FromInt(a.ParentID),
		"order":  value.FromInt(int64(a.Order)),
	}), nil
}

func (h scriptHost) Resource(name string) (value.Value, error) {
	s, err := h.st.resourceText(name, h.st.content.Area)
	if err != nil {
		return value.NullValue(), err
	}
	return value.FromString(s), nil
}

func (h scriptHost) Expand(text string) (string, error) {
	return h.st.expand(text)
}

// Print appends to the innermost SCRIPT tag's output. Outside a SCRIPT tag
// it is a no-op.
func (h scriptHost) Print(text string) {
	if f := h.st.req.stack.NearestScript(); f != nil {
		f.Script.Output.WriteString(text)
	}
}

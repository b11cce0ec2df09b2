// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"errors"
	"strings"

	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/scope"
	"nickandperla.net/tagx/internal/store"
	"nickandperla.net/tagx/internal/token"
	"nickandperla.net/tagx/internal/value"
)

func procKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// proc finds a visible procedure by tag name.
func (st *State) proc(name string) (*scope.Procedure, bool) {
	return st.req.stack.Proc(procKey(name))
}

// processCall handles CALL tags and bare tags naming a procedure or a slot.
// A slot named by the slot property, or by the tag name when no procedure
// of that name exists, is expanded first so it can define the procedure.
// When no procedure results, the expanded slot text is the output.
func (st *State) processCall(tag *scanner.Tag) (string, int, error) {
	p := newProperties(st, tag)
	name := tag.Name
	if strings.EqualFold(name, token.CALL) {
		n, err := p.Text("name", "")
		if err != nil {
			return "", tag.End, err
		}
		if n == "" && !p.Has("slot") {
			return "", tag.End, missingProp("name")
		}
		name = n
	}

	proc, ok := st.proc(name)
	var slotText string
	haveSlot := false
	if !ok || p.Has("slot") {
		slotName, err := p.Text("slot", name)
		if err != nil {
			return "", tag.End, err
		}
		raw, err := st.slotValue(slotName, st.content.Area, slotOptions{})
		switch {
		case err == nil:
			if slotText, err = st.expand(raw); err != nil {
				return "", tag.End, err
			}
			haveSlot = true
			if name != "" {
				proc, ok = st.proc(name)
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return "", tag.End, storeErr(err)
		}
	}
	if !ok {
		if haveSlot {
			return slotText, tag.End, nil
		}
		if name == "" {
			slotName, _ := p.Raw("slot")
			return "", tag.End, errorf(KindResource, "slot %s not found", slotName)
		}
		names := append(append([]string{}, builtinNames...), st.req.stack.ProcNames()...)
		return "", tag.End, unknownTag(name, names)
	}

	end := tag.End
	var inner string
	if proc.Inner {
		bodyStart, bodyEnd, closeEnd, err := scanner.MatchClose(st.text, tag)
		if err != nil {
			return "", tag.End, err
		}
		end = closeEnd
		if inner, err = st.expand(st.text[bodyStart:bodyEnd]); err != nil {
			return "", end, err
		}
	}
	if err := st.req.debugPoint(st, debug.CallTag, tag); err != nil {
		return "", end, err
	}
	transparent, err := p.Bool("transparent", false)
	if err != nil {
		return "", end, err
	}
	text, _, err := st.callProcedure(proc, p, inner, transparent)
	return text, end, err
}

// callArg finds the call-site property for a parameter, written with or
// without its '$'.
func callArg(p *Properties, param string) (string, bool) {
	if p.Has(param) {
		return param, true
	}
	if p.Has("$" + param) {
		return "$" + param, true
	}
	return "", false
}

// callProcedure expands a procedure body in a new call frame. Arguments are
// evaluated lazily in the caller's scope on first use. It returns the
// expanded text and the call's value.
func (st *State) callProcedure(proc *scope.Procedure, p *Properties, inner string, transparent bool) (string, value.Value, error) {
	stack := st.req.stack
	caller := p.from

	for _, param := range proc.Params {
		if param.Mode != scope.ByValue || param.Default != "" || (proc.Inner && param.Name == "inner") {
			continue
		}
		if _, ok := callArg(p, param.Name); !ok {
			return "", value.NullValue(), errorf(KindEval, "%s: missing argument %s", proc.Name, param.Name)
		}
	}

	resolve := func(param scope.Param, output bool) (scope.Binding, error) {
		if output {
			target := param.Name
			if prop, ok := callArg(p, param.Name); ok {
				target, _ = p.Name(prop)
			}
			ref, found, err := stack.LookupFrom(caller, target)
			if err != nil {
				return scope.Binding{}, err
			}
			if !found {
				if err := stack.Declare(caller, target, value.NullValue()); err != nil {
					return scope.Binding{}, err
				}
				ref = scope.Ref{Depth: caller, Name: scope.Normalize(target)}
			}
			return scope.Binding{Ref: &ref}, nil
		}
		if prop, ok := callArg(p, param.Name); ok {
			v, err := p.Value(prop)
			return scope.Binding{Value: v}, err
		}
		v, err := st.evalProp(scanner.Prop{Name: param.Name, Value: param.Default}, caller)
		return scope.Binding{Value: v}, err
	}

	f := scope.NewCallFrame(proc, resolve)
	depth := stack.Push(f)
	if proc.Inner {
		_ = stack.Declare(depth, "inner", value.FromString(inner))
	}
	st.req.logger.Debug("call", "procedure", proc.Name, "depth", depth)
	text, err := st.expand(proc.Body)
	result := f.Call.Result
	if proc.ReturnText {
		result = value.FromString(text)
	}
	if perr := stack.Pop(proc.Transparent || transparent); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return "", value.NullValue(), err
	}
	for _, param := range proc.Returns() {
		target := param.Name
		if prop, ok := callArg(p, param.Name); ok {
			target, _ = p.Name(prop)
		}
		if err := stack.Set(target, result); err != nil {
			return "", value.NullValue(), err
		}
	}
	return text, result, nil
}

// callValue invokes a procedure from an expression with positional
// arguments bound to by-value parameters in declaration order.
func (st *State) callValue(name string, args []value.Value) (value.Value, error) {
	proc, ok := st.proc(name)
	if !ok {
		return value.NullValue(), unknownTag(name, st.req.stack.ProcNames())
	}
	stack := st.req.stack
	i := 0
	f := scope.NewCallFrame(proc, func(scope.Param, bool) (scope.Binding, error) {
		return scope.Binding{Value: value.NullValue()}, nil
	})
	depth := stack.Push(f)
	for _, param := range proc.Params {
		if param.Mode != scope.ByValue {
			continue
		}
		v := value.NullValue()
		switch {
		case i < len(args):
			v = args[i]
		case param.Default != "":
			var err error
			if v, err = st.evalProp(scanner.Prop{Name: param.Name, Value: param.Default}, depth-1); err != nil {
				_ = stack.Pop(false)
				return value.NullValue(), err
			}
		}
		i++
		_ = stack.Declare(depth, param.Name, v)
	}
	text, err := st.expand(proc.Body)
	result := f.Call.Result
	if proc.ReturnText {
		result = value.FromString(text)
	}
	if perr := stack.Pop(proc.Transparent); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return value.NullValue(), err
	}
	return result, nil
}

// builtinProcedure defines a procedure. Properties starting with '$'
// declare parameters.
func builtinProcedure(st *State, body string, p *Properties) (string, error) {
	name, err := p.RequiredName("name")
	if err != nil {
		return "", err
	}
	proc := &scope.Procedure{Name: procKey(name), Body: body}
	if isBuiltin(proc.Name) {
		return "", errorf(KindEval, "procedure %s shadows a builtin tag", proc.Name)
	}
	for _, prop := range p.Tag().Props {
		if param, ok := scope.ParseParam(prop); ok {
			proc.Params = append(proc.Params, param)
		}
	}
	for _, opt := range []struct {
		name string
		dst  *bool
	}{
		{"global", &proc.Global},
		{"returnText", &proc.ReturnText},
		{"inner", &proc.Inner},
		{"transparent", &proc.Transparent},
	} {
		if *opt.dst, err = p.Bool(opt.name, false); err != nil {
			return "", err
		}
	}
	stack := st.req.stack
	depth := stack.Depth() - 1
	if proc.Global {
		depth = 0
	}
	st.req.logger.Debug("define procedure", "name", proc.Name, "params", len(proc.Params), "global", proc.Global)
	return "", stack.DefineProc(depth, proc)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"nickandperla.net/tagx/internal/calc"
	"nickandperla.net/tagx/internal/cond"
	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/scope"
	"nickandperla.net/tagx/internal/value"
)

// infinite is the LOOP count that iterates until broken.
const infinite = -1

// iterControl names the per-iteration control variables of LOOP and LIST.
type iterControl struct {
	brk, discard string
	divider      string
}

func readIterControl(p *Properties) (iterControl, error) {
	var c iterControl
	c.brk, _ = p.Name("break")
	c.discard, _ = p.Name("discard")
	var err error
	c.divider, err = p.Text("divider", "")
	return c, err
}

// bind declares the control variables in frame depth.
func (c iterControl) bind(stack *scope.Stack, depth int) {
	if c.brk != "" {
		_ = stack.Declare(depth, c.brk, value.FromBool(false))
	}
	if c.discard != "" {
		_ = stack.Declare(depth, c.discard, value.FromBool(false))
	}
}

// read reports the break and discard state after an iteration. Flags set by
// LAST on the loop frame count as well.
func (c iterControl) read(f *scope.Frame) (brk, discard bool) {
	if f.Loop != nil {
		brk, discard = f.Loop.Breaked, f.Loop.Discard
	}
	if c.brk != "" {
		if v, ok := f.Var(c.brk); ok && v.Value.Truthy() {
			brk = true
		}
	}
	if c.discard != "" {
		if v, ok := f.Var(c.discard); ok && v.Value.Truthy() {
			discard = true
		}
	}
	return brk, discard
}

// iterations collects iteration outputs, applying dividers and discards.
type iterations struct {
	sb      strings.Builder
	n       int
	divider string
}

func (it *iterations) add(text string) {
	if it.n > 0 {
		it.sb.WriteString(it.divider)
	}
	it.sb.WriteString(text)
	it.n++
}

// builtinLoop iterates count times, or from..to inclusive by step.
func builtinLoop(st *State, body string, p *Properties) (string, error) {
	from, err := p.Int("from", 0)
	if err != nil {
		return "", err
	}
	step, err := p.Int("step", 1)
	if err != nil {
		return "", err
	}
	if p.Has("step") && step == 0 {
		return "", errorf(KindEval, "LOOP step must not be zero")
	}
	count := int64(infinite)
	switch {
	case p.Has("count"):
		if count, err = p.Int("count", 0); err != nil {
			return "", err
		}
		if count < infinite {
			return "", errorf(KindEval, "LOOP count must not be negative, got %d", count)
		}
	case p.Has("to"):
		to, err := p.Int("to", 0)
		if err != nil {
			return "", err
		}
		if !p.Has("step") && to < from {
			step = -1
		}
		count = 0
		if (step > 0 && to >= from) || (step < 0 && to <= from) {
			count = (to-from)/step + 1
		}
	default:
		return "", errorf(KindEval, "LOOP needs count or to")
	}
	index, _ := p.Name("index")
	ctl, err := readIterControl(p)
	if err != nil {
		return "", err
	}

	stack := st.req.stack
	out := iterations{divider: ctl.divider}
	for i := int64(0); count == infinite || i < count; i++ {
		if err := st.req.checkDeadline(); err != nil {
			return "", err
		}
		f := scope.NewLoopFrame("loop")
		depth := stack.Push(f)
		if index != "" {
			_ = stack.Declare(depth, index, value.FromInt(from+i*step))
		}
		ctl.bind(stack, depth)
		errsBefore := len(st.req.errs)
		text, err := st.expand(body)
		brk, discard := ctl.read(f)
		if perr := stack.Pop(false); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return "", err
		}
		if !discard || len(st.req.errs) > errsBefore {
			out.add(text)
		}
		if brk {
			break
		}
	}
	return out.sb.String(), nil
}

// builtinList iterates the items of a list, or the entries of a map.
func builtinList(st *State, body string, p *Properties) (string, error) {
	items, err := p.RequiredValue("items")
	if err != nil {
		return "", err
	}
	seq := items.Seq()
	if sep, ok := p.Raw("separator"); ok && items.Kind() == value.String {
		seq = nil
		for _, s := range strings.Split(items.String(), sep) {
			seq = append(seq, value.FromString(strings.TrimSpace(s)))
		}
	}
	item := "item"
	if n, ok := p.Name("item"); ok {
		item = n
	}
	iterator, _ := p.Name("iterator")
	local, err := p.Bool("local", false)
	if err != nil {
		return "", err
	}
	ctl, err := readIterControl(p)
	if err != nil {
		return "", err
	}

	stack := st.req.stack
	lf := scope.NewListFrame("list", seq, iterator)
	depth := stack.Push(lf)
	ctl.bind(stack, depth)
	out := iterations{divider: ctl.divider}
	var loopErr error
	for i, v := range seq {
		if loopErr = st.req.checkDeadline(); loopErr != nil {
			break
		}
		lf.List.Cursor = i + 1
		_ = stack.Declare(depth, item, v)
		c := st.content
		if id, ok := v.AreaID(); ok && local {
			c.Area = id
		}
		errsBefore := len(st.req.errs)
		stack.Push(scope.NewFrame("item"))
		text, err := st.expandChild(body, c)
		if perr := stack.Pop(false); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			loopErr = err
			break
		}
		brk, discard := ctl.read(lf)
		if !discard || len(st.req.errs) > errsBefore {
			out.add(text)
		}
		if discard && ctl.discard != "" {
			_ = stack.Declare(depth, ctl.discard, value.FromBool(false))
		}
		lf.Loop.Discard = false
		if brk {
			break
		}
	}
	if err := stack.Pop(false); err != nil && loopErr == nil {
		loopErr = err
	}
	if loopErr != nil {
		return "", loopErr
	}
	return out.sb.String(), nil
}

// contentFor applies area, language and version properties to the current
// content context.
func (st *State) contentFor(p *Properties) (Context, error) {
	c := st.content
	if p.Has("area") {
		v, err := p.Value("area")
		if err != nil {
			return c, err
		}
		if c.Area, err = st.resolveArea(v); err != nil {
			return c, err
		}
	}
	if p.Has("language") {
		lang, err := p.Text("language", "")
		if err != nil {
			return c, err
		}
		l, err := st.req.ev.store.Language(st.req.ctx, lang)
		if err != nil {
			return c, storeErr(err)
		}
		c.Language = l.ID
	}
	if p.Has("version") {
		v, err := p.Int("version", 0)
		if err != nil {
			return c, err
		}
		c.Version = v
	}
	return c, nil
}

// resolveArea maps an area reference, id or alias to an area id.
func (st *State) resolveArea(v value.Value) (int64, error) {
	if id, ok := v.AreaID(); ok {
		return id, nil
	}
	if v.Kind() == value.Int {
		id, _ := v.AsInt()
		return id, nil
	}
	if id, ok := v.Field("id"); ok {
		return st.resolveArea(id)
	}
	a, err := st.req.ev.store.AreaByAlias(st.req.ctx, v.String())
	if err != nil {
		if i, ok := v.AsInt(); ok {
			return i, nil
		}
		return 0, storeErr(err)
	}
	return a.ID, nil
}

// builtinBlock expands its body in a new frame, optionally under another
// content context.
func builtinBlock(st *State, body string, p *Properties) (string, error) {
	c, err := st.contentFor(p)
	if err != nil {
		return "", err
	}
	transparent, err := p.Bool("transparent", false)
	if err != nil {
		return "", err
	}
	stack := st.req.stack
	stack.Push(scope.NewFrame("block"))
	out, err := st.expandChild(body, c)
	if perr := stack.Pop(transparent); perr != nil && err == nil {
		err = perr
	}
	return out, err
}

// processIf selects one branch of an IF structure and expands it in a new
// frame. Guards of later branches are never evaluated.
func (st *State) processIf(tag *scanner.Tag) (string, int, error) {
	res, err := cond.Parse(st.text, tag.Start, st.guard)
	if err != nil {
		return "", tag.End, err
	}
	if err := st.req.debugPoint(st, debug.FullTag, tag); err != nil {
		return "", res.End, err
	}
	if res.Selected < 0 {
		return "", res.End, nil
	}
	stack := st.req.stack
	stack.Push(scope.NewFrame("if"))
	out, err := st.expand(res.Body)
	if perr := stack.Pop(false); perr != nil && err == nil {
		err = perr
	}
	return out, res.End, err
}

// guard evaluates an IF or ELSEIF condition: the cond property when given,
// otherwise the tag's whole property text as one expression.
func (st *State) guard(tag *scanner.Tag) (bool, error) {
	p := newProperties(st, tag)
	for _, name := range []string{"cond", "condition"} {
		if p.Has(name) {
			v, err := p.Value(name)
			if err != nil {
				return false, err
			}
			return v.Truthy(), nil
		}
	}
	v, err := st.evalExpr(tag.Raw, calc.UndefinedNull)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// builtinLanguages expands its body once per store language with the
// content context switched to that language.
func builtinLanguages(st *State, body string, p *Properties) (string, error) {
	langs, err := st.req.ev.store.Languages(st.req.ctx)
	if err != nil {
		return "", storeErr(err)
	}
	divider, err := p.Text("divider", "")
	if err != nil {
		return "", err
	}
	stack := st.req.stack
	out := iterations{divider: divider}
	for _, l := range langs {
		if err := st.req.checkDeadline(); err != nil {
			return "", err
		}
		depth := stack.Push(scope.NewLangFrame(l.ID))
		_ = stack.Declare(depth, "language", value.FromString(l.ID))
		_ = stack.Declare(depth, "language_name", value.FromString(l.Name))
		c := st.content
		c.Language = l.ID
		text, err := st.expandChild(body, c)
		if perr := stack.Pop(false); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return "", err
		}
		out.add(text)
	}
	return out.sb.String(), nil
}

// storeErr marks a content store failure as a resource error.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindResource, Msg: err.Error(), Err: err}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"errors"
	"strings"

	"nickandperla.net/tagx/internal/calc"
	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/value"
)

// Properties gives typed access to a tag's properties. Each property is
// evaluated at most once per tag invocation.
type Properties struct {
	tag   *scanner.Tag
	st    *State
	from  int // scope depth expressions resolve from
	cache map[string]value.Value
}

func newProperties(st *State, tag *scanner.Tag) *Properties {
	return &Properties{
		tag:   tag,
		st:    st,
		from:  st.req.stack.Depth() - 1,
		cache: make(map[string]value.Value),
	}
}

// Tag returns the parsed tag.
func (p *Properties) Tag() *scanner.Tag { return p.tag }

// Has reports whether a named property is present.
func (p *Properties) Has(name string) bool {
	_, ok := p.tag.Prop(name)
	return ok
}

// Raw returns a property's unevaluated text.
func (p *Properties) Raw(name string) (string, bool) {
	prop, ok := p.tag.Prop(name)
	return prop.Value, ok
}

// Name returns a property's raw text with any leading '$' removed. It is
// used for properties that name variables.
func (p *Properties) Name(name string) (string, bool) {
	raw, ok := p.Raw(name)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimSpace(raw), "$"), raw != ""
}

// RequiredName is Name for a mandatory property.
func (p *Properties) RequiredName(name string) (string, error) {
	n, ok := p.Name(name)
	if !ok {
		return "", missingProp(name)
	}
	return n, nil
}

// Flag reports whether a bare-word flag or a truthy property is present.
func (p *Properties) Flag(name string) bool {
	for _, prop := range p.tag.Props {
		if prop.Flag && !prop.Quoted && strings.EqualFold(prop.Name, name) {
			return true
		}
	}
	if !p.Has(name) {
		return false
	}
	v, err := p.Value(name)
	return err == nil && v.Truthy()
}

// Value evaluates a property. Quoted values are literal strings; unquoted
// values are expressions, falling back to the raw text when they do not
// parse or name an undefined variable. A "script:" or "js:" prefix runs the
// embedded script engine.
func (p *Properties) Value(name string) (value.Value, error) {
	key := strings.ToLower(name)
	if v, ok := p.cache[key]; ok {
		return v, nil
	}
	prop, ok := p.tag.Prop(name)
	if !ok {
		return value.NullValue(), nil
	}
	v, err := p.st.evalProp(prop, p.from)
	if err != nil {
		return value.NullValue(), err
	}
	p.cache[key] = v
	return v, nil
}

// RequiredValue is Value for a mandatory property.
func (p *Properties) RequiredValue(name string) (value.Value, error) {
	if !p.Has(name) {
		return value.NullValue(), missingProp(name)
	}
	return p.Value(name)
}

// Text returns a property's string form, or def when absent.
func (p *Properties) Text(name, def string) (string, error) {
	if !p.Has(name) {
		return def, nil
	}
	v, err := p.Value(name)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// RequiredText is Text for a mandatory property.
func (p *Properties) RequiredText(name string) (string, error) {
	v, err := p.RequiredValue(name)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Int returns a property as an integer, or def when absent.
func (p *Properties) Int(name string, def int64) (int64, error) {
	if !p.Has(name) {
		return def, nil
	}
	v, err := p.Value(name)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, errorf(KindEval, "property %q: %q is not an integer", name, v.String())
	}
	return i, nil
}

// Float returns a property as a float, or def when absent.
func (p *Properties) Float(name string, def float64) (float64, error) {
	if !p.Has(name) {
		return def, nil
	}
	v, err := p.Value(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, errorf(KindEval, "property %q: %q is not a number", name, v.String())
	}
	return f, nil
}

// Bool returns a property's truthiness, or def when absent. A bare flag is
// true.
func (p *Properties) Bool(name string, def bool) (bool, error) {
	for _, prop := range p.tag.Props {
		if prop.Flag && !prop.Quoted && strings.EqualFold(prop.Name, name) {
			return true, nil
		}
	}
	if !p.Has(name) {
		return def, nil
	}
	v, err := p.Value(name)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Positional returns the i-th bare word of the tag.
func (p *Properties) Positional(i int) (string, bool) {
	n := 0
	for _, prop := range p.tag.Props {
		if !prop.Flag {
			continue
		}
		if n == i {
			return prop.Name, true
		}
		n++
	}
	return "", false
}

// Args returns the non-flag properties whose names are not in reserved.
func (p *Properties) Args(reserved ...string) []scanner.Prop {
	var out []scanner.Prop
	for _, prop := range p.tag.Props {
		if prop.Flag || isReserved(prop.Name, reserved) {
			continue
		}
		out = append(out, prop)
	}
	return out
}

func isReserved(name string, reserved []string) bool {
	for _, r := range reserved {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}

// evalProp evaluates one property with identifiers resolved from scope depth
// from.
func (st *State) evalProp(prop scanner.Prop, from int) (value.Value, error) {
	if prop.Quoted {
		return value.FromString(prop.Value), nil
	}
	raw := strings.TrimSpace(prop.Value)
	if code, ok := scriptCode(raw); ok {
		return st.runScript(code)
	}
	n, err := calc.Parse(raw)
	if err != nil {
		return value.FromString(raw), nil
	}
	v, err := st.calc(from, calc.UndefinedError).EvalNode(n)
	if errors.Is(err, calc.ErrUndefined) {
		return value.FromString(raw), nil
	}
	return v, err
}

func scriptCode(raw string) (string, bool) {
	for _, prefix := range []string{"script:", "js:"} {
		if len(raw) >= len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
			return raw[len(prefix):], true
		}
	}
	return "", false
}

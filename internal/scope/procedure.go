// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scope

import (
	"strings"

	"nickandperla.net/tagx/internal/scanner"
)

// ParamMode is how a procedure parameter is bound.
type ParamMode int

const (
	ByValue  ParamMode = iota
	Output             // live reference to a caller variable
	Returned           // receives the call's value on completion
)

// Param is a declared procedure parameter.
type Param struct {
	Name    string
	Mode    ParamMode
	Default string
	Raw     string // declaration text as written
}

// Procedure is a stored, unexpanded template body with its parameters.
type Procedure struct {
	Name        string
	Params      []Param
	Body        string
	Global      bool
	ReturnText  bool
	Inner       bool // receives the call-site body as $inner
	Transparent bool
}

// Param returns the declared parameter with the given name.
func (p *Procedure) Param(name string) (Param, bool) {
	name = Normalize(name)
	for _, param := range p.Params {
		if param.Name == name {
			return param, true
		}
	}
	return Param{}, false
}

// Returns lists the parameters bound in Returned mode.
func (p *Procedure) Returns() []Param {
	var out []Param
	for _, param := range p.Params {
		if param.Mode == Returned {
			out = append(out, param)
		}
	}
	return out
}

// ParseParam interprets a declaration property. Names starting with '$' are
// parameters: "$p" binds by value, "$p=output" by reference, "$p=returned"
// receives the call's value, and any other value is a default.
func ParseParam(prop scanner.Prop) (Param, bool) {
	if !strings.HasPrefix(prop.Name, "$") || len(prop.Name) < 2 {
		return Param{}, false
	}
	param := Param{Name: Normalize(prop.Name), Raw: prop.Name}
	if prop.Flag {
		return param, true
	}
	param.Raw = prop.Name + "=" + prop.Value
	switch {
	case !prop.Quoted && strings.EqualFold(prop.Value, "output"):
		param.Mode = Output
	case !prop.Quoted && strings.EqualFold(prop.Value, "returned"):
		param.Mode = Returned
	default:
		param.Default = prop.Value
	}
	return param, true
}

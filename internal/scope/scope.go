// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scope implements the tagx scope stack: frames of variables and
// procedures with transparent merge-on-pop.
package scope

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"nickandperla.net/tagx/internal/value"
)

// ErrPopRoot is returned when popping the only remaining frame.
var ErrPopRoot = errors.New("scope: cannot pop the root frame")

// FrameKind identifies a frame variant.
type FrameKind int

const (
	Plain FrameKind = iota
	Loop
	ListIter
	Call
	Script
	Lang
)

func (k FrameKind) String() string {
	switch k {
	case Plain:
		return "block"
	case Loop:
		return "loop"
	case ListIter:
		return "list"
	case Call:
		return "call"
	case Script:
		return "script"
	case Lang:
		return "languages"
	}
	return "unknown"
}

// Variable is a named, mutable value.
type Variable struct {
	Name  string
	Value value.Value
}

// Ref addresses a variable slot by frame index and name. It stays valid
// while the frame at Depth is on the stack.
type Ref struct {
	Depth int
	Name  string
}

// LoopState carries the break and discard flags of loop and list frames.
type LoopState struct {
	Breaked bool
	Discard bool
}

// ListState carries the backing sequence of a list frame.
type ListState struct {
	Items        []value.Value
	Cursor       int // 1-based
	IteratorName string
}

// Binding is the result of resolving a procedure parameter: either a value or
// a reference into a caller frame.
type Binding struct {
	Value value.Value
	Ref   *Ref
}

// ParamResolver resolves a declared parameter from its raw declaration text.
// output is true for parameters bound by reference.
type ParamResolver func(p Param, output bool) (Binding, error)

// CallState carries the procedure being invoked.
type CallState struct {
	Proc     *Procedure
	Resolve  ParamResolver
	Result   value.Value
	resolved map[string]bool
}

// ScriptState accumulates embedded-script output.
type ScriptState struct {
	Output strings.Builder
}

// LangState carries the language of a language-iteration frame.
type LangState struct {
	Language string
}

// Frame is one scope stack entry.
type Frame struct {
	Name string
	Kind FrameKind

	vars  map[string]*Variable
	procs map[string]*Procedure
	refs  map[string]Ref

	Loop   *LoopState
	List   *ListState
	Call   *CallState
	Script *ScriptState
	Lang   *LangState
}

// NewFrame creates a plain frame.
func NewFrame(name string) *Frame {
	return &Frame{
		Name:  name,
		Kind:  Plain,
		vars:  make(map[string]*Variable),
		procs: make(map[string]*Procedure),
		refs:  make(map[string]Ref),
	}
}

// NewLoopFrame creates a loop frame.
func NewLoopFrame(name string) *Frame {
	f := NewFrame(name)
	f.Kind = Loop
	f.Loop = &LoopState{}
	return f
}

// NewListFrame creates a list-iteration frame over items.
func NewListFrame(name string, items []value.Value, iterator string) *Frame {
	f := NewFrame(name)
	f.Kind = ListIter
	f.Loop = &LoopState{}
	f.List = &ListState{Items: items, IteratorName: Normalize(iterator)}
	return f
}

// NewCallFrame creates a procedure-call frame.
func NewCallFrame(p *Procedure, resolve ParamResolver) *Frame {
	f := NewFrame(p.Name)
	f.Kind = Call
	f.Call = &CallState{Proc: p, Resolve: resolve, resolved: make(map[string]bool)}
	return f
}

// NewScriptFrame creates a script-capture frame.
func NewScriptFrame(name string) *Frame {
	f := NewFrame(name)
	f.Kind = Script
	f.Script = &ScriptState{}
	return f
}

// NewLangFrame creates a language-iteration frame.
func NewLangFrame(language string) *Frame {
	f := NewFrame("language " + language)
	f.Kind = Lang
	f.Lang = &LangState{Language: language}
	return f
}

// Var returns a variable defined directly in this frame.
func (f *Frame) Var(name string) (*Variable, bool) {
	v, ok := f.vars[Normalize(name)]
	return v, ok
}

// VarNames returns the sorted names of variables defined in this frame.
func (f *Frame) VarNames() []string {
	names := make([]string, 0, len(f.vars))
	for n := range f.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// defines reports whether name is bound in this frame without resolving
// anything: a variable, a reference, an iterator, or a declared parameter of
// a call frame even when it has not been read yet.
func (f *Frame) defines(name string) bool {
	if _, ok := f.vars[name]; ok {
		return true
	}
	if _, ok := f.refs[name]; ok {
		return true
	}
	if f.isIterator(name) {
		return true
	}
	if f.Call != nil {
		if _, ok := f.Call.Proc.Param(name); ok {
			return true
		}
	}
	return false
}

func (f *Frame) isIterator(name string) bool {
	return f.List != nil && f.List.IteratorName != "" && f.List.IteratorName == name
}

// Stack is a stack of frames. It always holds at least one frame.
type Stack struct {
	frames []*Frame
	pushes int
	pops   int
}

// New creates a stack holding a single global frame.
func New() *Stack {
	return &Stack{frames: []*Frame{NewFrame("global")}}
}

// Normalize strips a leading '$' from a variable name.
func Normalize(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "$")
}

// Push adds a frame and returns its index.
func (s *Stack) Push(f *Frame) int {
	s.frames = append(s.frames, f)
	s.pushes++
	return len(s.frames) - 1
}

// Pop removes the top frame. A transparent pop merges the frame's variables
// and procedures into the new top frame for names not already defined there.
func (s *Stack) Pop(transparent bool) error {
	if len(s.frames) <= 1 {
		return ErrPopRoot
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.pops++
	if transparent {
		dst := s.frames[len(s.frames)-1]
		for name, v := range top.vars {
			if !dst.defines(name) {
				dst.vars[name] = v
			}
		}
		for name, p := range top.procs {
			if _, ok := dst.procs[name]; !ok {
				dst.procs[name] = p
			}
		}
	}
	return nil
}

// Depth returns the number of frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Pushes returns the number of pushes since creation.
func (s *Stack) Pushes() int { return s.pushes }

// Pops returns the number of pops since creation.
func (s *Stack) Pops() int { return s.pops }

// Top returns the innermost frame.
func (s *Stack) Top() *Frame { return s.frames[len(s.frames)-1] }

// Global returns the outermost frame.
func (s *Stack) Global() *Frame { return s.frames[0] }

// At returns the frame at index i.
func (s *Stack) At(i int) *Frame {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	return s.frames[i]
}

// Lookup finds the slot holding name, searching from the top frame.
func (s *Stack) Lookup(name string) (Ref, bool, error) {
	return s.LookupFrom(len(s.frames)-1, name)
}

// LookupFrom finds the slot holding name, searching down from frame start.
// The search stops after the nearest call frame and then consults the global
// frame, so procedure bodies do not see their caller's locals.
func (s *Stack) LookupFrom(start int, name string) (Ref, bool, error) {
	name = Normalize(name)
	if start >= len(s.frames) {
		start = len(s.frames) - 1
	}
	for i := start; i >= 0; i-- {
		ok, err := s.holds(i, name)
		if err != nil {
			return Ref{}, false, err
		}
		if ok {
			return s.follow(Ref{Depth: i, Name: name}), true, nil
		}
		if s.frames[i].Kind == Call && i > 0 {
			ok, err := s.holds(0, name)
			if err != nil || !ok {
				return Ref{}, false, err
			}
			return Ref{Depth: 0, Name: name}, true, nil
		}
	}
	return Ref{}, false, nil
}

// holds reports whether frame i defines name, resolving a pending procedure
// parameter on first access.
func (s *Stack) holds(i int, name string) (bool, error) {
	f := s.frames[i]
	if _, ok := f.vars[name]; ok {
		return true, nil
	}
	if _, ok := f.refs[name]; ok {
		return true, nil
	}
	if f.isIterator(name) {
		return true, nil
	}
	if f.Call == nil || f.Call.resolved[name] {
		return false, nil
	}
	param, ok := f.Call.Proc.Param(name)
	if !ok || param.Mode == Returned {
		return false, nil
	}
	f.Call.resolved[name] = true
	b, err := f.Call.Resolve(param, param.Mode == Output)
	if err != nil {
		return false, fmt.Errorf("parameter %s of %s: %w", name, f.Call.Proc.Name, err)
	}
	if b.Ref != nil {
		f.refs[name] = *b.Ref
	} else {
		f.vars[name] = &Variable{Name: name, Value: b.Value}
	}
	return true, nil
}

// follow resolves reference bindings down to the frame holding the value.
func (s *Stack) follow(r Ref) Ref {
	for r.Depth >= 0 && r.Depth < len(s.frames) {
		next, ok := s.frames[r.Depth].refs[r.Name]
		if !ok {
			break
		}
		r = next
	}
	return r
}

// Load reads the slot addressed by r.
func (s *Stack) Load(r Ref) (value.Value, bool) {
	r = s.follow(r)
	f := s.At(r.Depth)
	if f == nil {
		return value.NullValue(), false
	}
	if v, ok := f.vars[r.Name]; ok {
		return v.Value, true
	}
	if f.isIterator(r.Name) {
		return value.FromInt(int64(f.List.Cursor)), true
	}
	return value.NullValue(), false
}

// Store writes the slot addressed by r, creating the variable if needed.
func (s *Stack) Store(r Ref, v value.Value) error {
	r = s.follow(r)
	f := s.At(r.Depth)
	if f == nil {
		return fmt.Errorf("scope: stale reference to %s at depth %d", r.Name, r.Depth)
	}
	if existing, ok := f.vars[r.Name]; ok {
		existing.Value = v
		return nil
	}
	f.vars[r.Name] = &Variable{Name: r.Name, Value: v}
	return nil
}

// Declare creates or replaces a variable in the frame at index depth.
func (s *Stack) Declare(depth int, name string, v value.Value) error {
	f := s.At(depth)
	if f == nil {
		return fmt.Errorf("scope: no frame at depth %d", depth)
	}
	name = Normalize(name)
	f.vars[name] = &Variable{Name: name, Value: v}
	return nil
}

// Get reads a possibly dotted variable path.
func (s *Stack) Get(path string) (value.Value, bool, error) {
	parts := strings.Split(Normalize(path), ".")
	ref, ok, err := s.Lookup(parts[0])
	if err != nil || !ok {
		return value.NullValue(), false, err
	}
	v, ok := s.Load(ref)
	if !ok {
		return value.NullValue(), false, nil
	}
	for _, field := range parts[1:] {
		v, ok = v.Field(field)
		if !ok {
			return value.NullValue(), false, nil
		}
	}
	return v, true, nil
}

// Set assigns a possibly dotted variable path. An unknown head variable is
// created in the top frame; intermediate map levels are created on demand.
func (s *Stack) Set(path string, v value.Value) error {
	parts := strings.Split(Normalize(path), ".")
	ref, ok, err := s.Lookup(parts[0])
	if err != nil {
		return err
	}
	if !ok {
		ref = Ref{Depth: len(s.frames) - 1, Name: parts[0]}
	}
	if len(parts) == 1 {
		return s.Store(ref, v)
	}
	head, _ := s.Load(ref)
	if head.Kind() != value.Map {
		head = value.NewMap()
		if err := s.Store(ref, head); err != nil {
			return err
		}
	}
	cur := head
	for _, field := range parts[1 : len(parts)-1] {
		next, ok := cur.Field(field)
		if !ok || next.Kind() != value.Map {
			next = value.NewMap()
			cur.SetField(field, next)
		}
		cur = next
	}
	cur.SetField(parts[len(parts)-1], v)
	return nil
}

// DefineProc stores a procedure in the frame at index depth.
func (s *Stack) DefineProc(depth int, p *Procedure) error {
	f := s.At(depth)
	if f == nil {
		return fmt.Errorf("scope: no frame at depth %d", depth)
	}
	f.procs[p.Name] = p
	return nil
}

// Proc finds a procedure by name anywhere on the stack, innermost first.
func (s *Stack) Proc(name string) (*Procedure, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if p, ok := s.frames[i].procs[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// ProcNames returns the names of all visible procedures.
func (s *Stack) ProcNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range s.frames {
		for n := range f.procs {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// nearest returns the index of the innermost frame accepted by match.
func (s *Stack) nearest(match func(*Frame) bool) (int, *Frame) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if match(s.frames[i]) {
			return i, s.frames[i]
		}
	}
	return -1, nil
}

// NearestLoop returns the innermost loop or list frame.
func (s *Stack) NearestLoop() *Frame {
	_, f := s.nearest(func(f *Frame) bool { return f.Loop != nil })
	return f
}

// NearestList returns the innermost list frame.
func (s *Stack) NearestList() *Frame {
	_, f := s.nearest(func(f *Frame) bool { return f.List != nil })
	return f
}

// NearestCall returns the index and frame of the innermost call frame.
func (s *Stack) NearestCall() (int, *Frame) {
	return s.nearest(func(f *Frame) bool { return f.Call != nil })
}

// NearestScript returns the innermost script-capture frame.
func (s *Stack) NearestScript() *Frame {
	_, f := s.nearest(func(f *Frame) bool { return f.Script != nil })
	return f
}

// NearestLang returns the innermost language-iteration frame.
func (s *Stack) NearestLang() *Frame {
	_, f := s.nearest(func(f *Frame) bool { return f.Lang != nil })
	return f
}

// FrameView is a read-only rendering of a frame for debugger display.
type FrameView struct {
	Name string
	Kind string
	Vars map[string]string
}

// Snapshot renders all frames, outermost first.
func (s *Stack) Snapshot() []FrameView {
	views := make([]FrameView, len(s.frames))
	for i, f := range s.frames {
		vars := make(map[string]string, len(f.vars))
		for n, v := range f.vars {
			vars[n] = v.Value.String()
		}
		views[i] = FrameView{Name: f.Name, Kind: f.Kind.String(), Vars: vars}
	}
	return views
}

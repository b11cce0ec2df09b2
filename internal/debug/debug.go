// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package debug provides the instrumentation hooks the expansion driver
// calls: a no-op implementation and an in-process stepper.
package debug

import (
	"context"
	"strings"
	"sync"

	"nickandperla.net/tagx/internal/scope"
)

// Kind identifies an instrumentation point.
type Kind int

const (
	RequestStart Kind = iota
	RequestEnd
	SimpleTag  // value-only tag
	ComplexTag // property-aware tag
	FullTag    // inner-text tag
	CallTag    // procedure call
	Breakpoint // explicit BREAK tag
)

func (k Kind) String() string {
	switch k {
	case RequestStart:
		return "request-start"
	case RequestEnd:
		return "request-end"
	case SimpleTag:
		return "simple"
	case ComplexTag:
		return "complex"
	case FullTag:
		return "full"
	case CallTag:
		return "call"
	case Breakpoint:
		return "breakpoint"
	}
	return "unknown"
}

// Point is one instrumentation event.
type Point struct {
	Kind  Kind
	Tag   string
	Pos   int
	Line  int
	Col   int
	Level int
}

// Info is the interpreter state offered before a debug point.
type Info struct {
	RequestID string
	Frames    []scope.FrameView
	Excerpt   string
}

// Hook is called by the driver at instrumentation points. DebugPoint may
// block until the debugger resumes execution.
type Hook interface {
	SetDebugInfo(Info)
	DebugPoint(ctx context.Context, p Point) error
}

// Nop ignores every debug point.
type Nop struct{}

func (Nop) SetDebugInfo(Info) {}

func (Nop) DebugPoint(context.Context, Point) error { return nil }

type command int

const (
	cmdContinue command = iota
	cmdStep
)

// Stepper pauses at BREAK tags, at tags named in its breakpoint set and, in
// step mode, at every tag. Paused points are published on Events.
type Stepper struct {
	mu          sync.Mutex
	stepping    bool
	breakpoints map[string]bool
	info        Info
	cmds        chan command
	events      chan Point
}

// NewStepper creates a stepper. A buffered events channel of the given size
// receives paused points; events are dropped when it is full.
func NewStepper(buffer int) *Stepper {
	return &Stepper{
		breakpoints: make(map[string]bool),
		cmds:        make(chan command),
		events:      make(chan Point, buffer),
	}
}

// Events returns the channel of paused points.
func (s *Stepper) Events() <-chan Point { return s.events }

// SetBreakpoint pauses before every tag with the given name.
func (s *Stepper) SetBreakpoint(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakpoints[strings.ToUpper(tag)] = true
}

// ClearBreakpoint removes a tag breakpoint.
func (s *Stepper) ClearBreakpoint(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakpoints, strings.ToUpper(tag))
}

// SetDebugInfo records the state for the next point.
func (s *Stepper) SetDebugInfo(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// Info returns the most recently recorded state.
func (s *Stepper) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Stepper) shouldPause(p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p.Kind {
	case Breakpoint:
		return true
	case RequestStart, RequestEnd:
		return false
	}
	return s.stepping || s.breakpoints[strings.ToUpper(p.Tag)]
}

// DebugPoint blocks at pausing points until Continue or Step is called or
// ctx is done.
func (s *Stepper) DebugPoint(ctx context.Context, p Point) error {
	if !s.shouldPause(p) {
		return nil
	}
	select {
	case s.events <- p:
	default:
	}
	select {
	case cmd := <-s.cmds:
		s.mu.Lock()
		s.stepping = cmd == cmdStep
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Continue resumes a paused request and leaves step mode.
func (s *Stepper) Continue(ctx context.Context) error {
	return s.send(ctx, cmdContinue)
}

// Step resumes a paused request and pauses again at the next tag.
func (s *Stepper) Step(ctx context.Context) error {
	return s.send(ctx, cmdStep)
}

func (s *Stepper) send(ctx context.Context, c command) error {
	select {
	case s.cmds <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval implements the tagx expansion engine: the multi-pass driver,
// tag dispatch, property evaluation and procedure calls.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/scope"
	"nickandperla.net/tagx/internal/script"
	"nickandperla.net/tagx/internal/stdlib"
	"nickandperla.net/tagx/internal/store"
)

// DefaultMaxPasses bounds the number of passes a single render may run.
const DefaultMaxPasses = 64

// Context is the content context slot and resource lookups resolve against.
type Context struct {
	Area     int64
	Version  int64
	Language string
}

// Evaluator holds configuration shared by every request. It is safe for
// concurrent use once constructed.
type Evaluator struct {
	store          store.Store
	pool           *script.Pool
	acquireTimeout time.Duration
	logger         *slog.Logger
	debugger       debug.Hook
	timeout        time.Duration
	format         ErrorFormat
	strict         bool
	pack           bool
	maxPasses      int
	preludeText    string
	noStdlib       bool

	preludeOnce  sync.Once
	preludeProcs []*scope.Procedure
	preludeErr   error
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStore sets the content store.
func WithStore(s store.Store) Option {
	return func(e *Evaluator) { e.store = s }
}

// WithScriptPool sets the embedded script engine pool and its acquire timeout.
func WithScriptPool(p *script.Pool, acquire time.Duration) Option {
	return func(e *Evaluator) {
		e.pool = p
		e.acquireTimeout = acquire
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithDebugger installs a debugging hook.
func WithDebugger(h debug.Hook) Option {
	return func(e *Evaluator) { e.debugger = h }
}

// WithTimeout sets the per-render deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithErrorFormat selects the inline error marker format.
func WithErrorFormat(f ErrorFormat) Option {
	return func(e *Evaluator) { e.format = f }
}

// WithStrict makes the first error abort the render.
func WithStrict(strict bool) Option {
	return func(e *Evaluator) { e.strict = strict }
}

// WithPack enables removal of blank lines after every pass.
func WithPack(pack bool) Option {
	return func(e *Evaluator) { e.pack = pack }
}

// WithMaxPasses bounds the number of passes per render.
func WithMaxPasses(n int) Option {
	return func(e *Evaluator) { e.maxPasses = n }
}

// WithPrelude adds global procedure definitions loaded before every render.
func WithPrelude(text string) Option {
	return func(e *Evaluator) { e.preludeText += text }
}

// WithNoStdlib skips the built-in prelude.
func WithNoStdlib() Option {
	return func(e *Evaluator) { e.noStdlib = true }
}

// New creates an Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger:         slog.New(slog.DiscardHandler),
		debugger:       debug.Nop{},
		maxPasses:      DefaultMaxPasses,
		acquireTimeout: 5 * time.Second,
		pack:           true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = store.NewMemory()
	}
	if e.pool == nil {
		e.pool = script.NewPool(4)
	}
	return e
}

// Store returns the content store.
func (e *Evaluator) Store() store.Store { return e.store }

// Logger returns the evaluator's logger.
func (e *Evaluator) Logger() *slog.Logger { return e.logger }

// prelude expands the standard library and configured prelude once and
// returns the global procedures they define.
func (e *Evaluator) prelude(ctx context.Context) ([]*scope.Procedure, error) {
	e.preludeOnce.Do(func() {
		text := e.preludeText
		if !e.noStdlib {
			text = stdlib.Prelude + text
		}
		if text == "" {
			return
		}
		req := e.newRequest(ctx, Context{}, nil)
		if _, err := req.Render(text); err != nil {
			e.preludeErr = fmt.Errorf("prelude: %w", err)
			return
		}
		if req.Failed() {
			e.preludeErr = fmt.Errorf("prelude: %w", req.Errors()[0])
			return
		}
		for _, name := range req.stack.ProcNames() {
			p, _ := req.stack.Proc(name)
			e.preludeProcs = append(e.preludeProcs, p)
		}
	})
	return e.preludeProcs, e.preludeErr
}

// NewRequest starts a request whose scope stack persists across calls to
// Request.Render.
func (e *Evaluator) NewRequest(ctx context.Context, c Context) (*Request, error) {
	procs, err := e.prelude(ctx)
	if err != nil {
		return nil, err
	}
	return e.newRequest(ctx, c, procs), nil
}

// Result is the outcome of a render.
type Result struct {
	RequestID string
	Text      string
	Failed    bool
	Errors    []*Error
	Passes    int
	Trace     []string
}

// Render expands text in a fresh request. Recoverable errors appear inline
// and set Failed; fatal errors, and any error in strict mode, are returned.
// On a fatal error the result still holds the text produced so far.
func (e *Evaluator) Render(ctx context.Context, text string, c Context) (*Result, error) {
	req, err := e.NewRequest(ctx, c)
	if err != nil {
		return nil, err
	}
	out, err := req.Render(text)
	res := &Result{
		RequestID: req.ID(),
		Text:      out,
		Failed:    req.Failed(),
		Errors:    req.Errors(),
		Passes:    req.Passes(),
		Trace:     req.Trace(),
	}
	if err != nil && e.strict {
		return nil, err
	}
	return res, err
}

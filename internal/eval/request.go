// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/scope"
)

// Request is one top-level render. It owns the scope stack and the arena of
// expansion states; it is not safe for concurrent use.
type Request struct {
	ev       *Evaluator
	ctx      context.Context
	id       string
	logger   *slog.Logger
	started  time.Time
	deadline time.Time

	stack  *scope.Stack
	states []*State

	included  map[string]bool
	bookmarks map[string]string
	trace     []string
	errs      []*Error
	failed    bool
	passes    int
}

// State is one expansion pass over a text buffer. Child states refer to
// their parent by arena index.
type State struct {
	req      *Request
	index    int
	parent   int // -1 for the root state
	text     string
	cursor   int
	tagStart int
	content  Context
}

func (e *Evaluator) newRequest(ctx context.Context, c Context, procs []*scope.Procedure) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	r := &Request{
		ev:        e,
		ctx:       ctx,
		id:        id,
		logger:    e.logger.With("request_id", id),
		stack:     scope.New(),
		included:  make(map[string]bool),
		bookmarks: make(map[string]string),
	}
	for _, p := range procs {
		// prelude procedures are shared read-only
		_ = r.stack.DefineProc(0, p)
	}
	r.states = []*State{{req: r, parent: -1, content: c}}
	return r
}

// ID returns the request id.
func (r *Request) ID() string { return r.id }

// Failed reports whether any tag failed.
func (r *Request) Failed() bool { return r.failed }

// Errors returns the errors recorded so far.
func (r *Request) Errors() []*Error { return r.errs }

// Trace returns the values recorded by TRACE tags.
func (r *Request) Trace() []string { return r.trace }

// Passes returns the number of passes run by the last Render.
func (r *Request) Passes() int { return r.passes }

// Stack exposes the scope stack.
func (r *Request) Stack() *scope.Stack { return r.stack }

// Content returns the root content context.
func (r *Request) Content() Context { return r.states[0].content }

func (r *Request) root() *State { return r.states[0] }

// checkDeadline fails once the request deadline has passed or ctx is done.
func (r *Request) checkDeadline() error {
	if err := r.ctx.Err(); err != nil {
		return &Error{Kind: KindTimeout, Msg: err.Error(), Err: err}
	}
	if !r.deadline.IsZero() && time.Now().After(r.deadline) {
		return &Error{Kind: KindTimeout, Msg: ErrDeadline.Error(), Err: ErrDeadline}
	}
	return nil
}

// record notes a recovered error on the request.
func (r *Request) record(err *Error, fail bool) {
	r.errs = append(r.errs, err)
	if fail {
		r.failed = true
	}
	r.logger.Warn("tag failed", "tag", err.Tag, "kind", err.Kind.String(), "line", err.Line, "error", err.Msg)
}

func (r *Request) debugPoint(st *State, kind debug.Kind, tag *scanner.Tag) error {
	p := debug.Point{Kind: kind}
	if tag != nil {
		p.Tag, p.Pos, p.Level = tag.Name, tag.Start, tag.Level
		p.Line, p.Col = scanner.Position(st.text, tag.Start)
	}
	info := debug.Info{RequestID: r.id, Frames: r.stack.Snapshot()}
	if st != nil {
		info.Excerpt = excerpt(st.text, p.Pos)
	}
	r.ev.debugger.SetDebugInfo(info)
	return r.ev.debugger.DebugPoint(r.ctx, p)
}

func excerpt(text string, pos int) string {
	end := pos + 80
	if end > len(text) {
		end = len(text)
	}
	if pos > end {
		pos = end
	}
	return text[pos:end]
}

// Render expands text to completion: it runs passes, strips one deferral
// level after each, and repeats until nothing remains to strip.
func (r *Request) Render(text string) (string, error) {
	r.started = time.Now()
	r.deadline = time.Time{}
	if r.ev.timeout > 0 {
		r.deadline = r.started.Add(r.ev.timeout)
	}
	r.passes = 0
	root := r.root()
	root.text = text
	r.logger.Debug("render start", "bytes", len(text))
	if err := r.debugPoint(root, debug.RequestStart, nil); err != nil {
		return "", classify(err)
	}

	for {
		if r.passes >= r.ev.maxPasses {
			return r.abort(root, errorf(KindSemantic, "pass limit of %d exceeded", r.ev.maxPasses))
		}
		r.passes++
		errsBefore := len(r.errs)
		if err := root.pass(); err != nil {
			return r.abort(root, classify(err))
		}
		if r.ev.strict && len(r.errs) > errsBefore {
			return "", r.errs[errsBefore]
		}
		if d := r.stack.Depth(); d != 1 {
			return r.abort(root, errorf(KindSemantic, "unbalanced scope stack: %d frames after pass %d", d, r.passes))
		}
		root.text = r.postPass(root.text)
		next, changed, err := scanner.Relevel(root.text, -1)
		if err != nil {
			return r.abort(root, classify(err))
		}
		if !changed {
			break
		}
		root.text = next
	}

	out := scanner.Unescape(dropBookmarks(root.text))
	r.logger.Debug("render end", "passes", r.passes, "failed", r.failed)
	if err := r.debugPoint(root, debug.RequestEnd, nil); err != nil {
		return out, classify(err)
	}
	return out, nil
}

// abort ends the render on a fatal error, keeping the text produced before
// the failing tag.
func (r *Request) abort(root *State, err *Error) (string, error) {
	r.errs = append(r.errs, err)
	r.failed = true
	r.logger.Error("render aborted", "kind", err.Kind.String(), "error", err.Error())
	if r.ev.strict {
		return "", err
	}
	start := root.tagStart
	if start > len(root.text) {
		start = len(root.text)
	}
	partial := root.text[:start] + r.ev.format.marker(err)
	return scanner.Unescape(dropBookmarks(r.postPass(partial))), err
}

// pushState adds a child state to the arena.
func (r *Request) pushState(parent *State, text string, c Context) *State {
	st := &State{req: r, index: len(r.states), parent: parent.index, text: text, content: c}
	r.states = append(r.states, st)
	return st
}

// popState discards the most recent child state.
func (r *Request) popState(st *State) {
	r.states = r.states[:st.index]
}

// Parent returns the parent state, or nil for the root.
func (st *State) Parent() *State {
	if st.parent < 0 {
		return nil
	}
	return st.req.states[st.parent]
}

// Content returns the state's content context.
func (st *State) Content() Context { return st.content }

// expandChild runs one pass over text in a child state under the given
// content context and returns the resulting text.
func (st *State) expandChild(text string, c Context) (string, error) {
	child := st.req.pushState(st, text, c)
	defer st.req.popState(child)
	if err := child.pass(); err != nil {
		return "", err
	}
	return child.text, nil
}

// expand runs a child pass under the current content context.
func (st *State) expand(text string) (string, error) {
	return st.expandChild(text, st.content)
}

// pass scans the buffer left to right, dispatching every level-0 tag and
// splicing results back in.
func (st *State) pass() error {
	st.cursor = 0
	for {
		tag, err := scanner.FindOpen(st.text, st.cursor)
		if err != nil {
			e := classify(err)
			if se, ok := err.(*scanner.SyntaxError); ok {
				st.tagStart = se.Pos
				e.Pos = se.Pos
				e.Line, e.Col = scanner.Position(st.text, se.Pos)
			}
			return e
		}
		if tag == nil {
			return nil
		}
		st.tagStart = tag.Start
		if err := st.req.checkDeadline(); err != nil {
			return err
		}
		out, end, err := st.dispatch(tag)
		if err != nil {
			e := classify(err)
			if e.Tag == "" {
				e.Tag = tag.Name
				e.Pos = tag.Start
				e.Line, e.Col = scanner.Position(st.text, tag.Start)
			}
			if e.Kind.Fatal() || st.req.ev.strict {
				return e
			}
			st.req.record(e, !suppressed(tag))
			marker := st.req.ev.format.marker(e)
			st.text = st.text[:tag.Start] + marker + st.text[end:]
			st.cursor = tag.Start + len(marker)
			continue
		}
		st.text = st.text[:tag.Start] + demote(out) + st.text[end:]
		st.cursor = tag.Start
	}
}

// demote marks every tag in processor output as deferred by one level so it
// is not reinterpreted in the pass that produced it. BOOKMARK stays
// immediate. Output that does not scan as tags is escaped into plain text.
func demote(out string) string {
	next, _, err := scanner.Relevel(out, 1, "BOOKMARK")
	if err != nil {
		return scanner.Escape(out)
	}
	return next
}

// suppressed reports whether a tag asked for its failure not to mark the
// request as failed.
func suppressed(tag *scanner.Tag) bool {
	for _, p := range tag.Props {
		if p.Flag && !p.Quoted && (p.Name == "nofail" || p.Name == "NOFAIL") {
			return true
		}
	}
	return false
}

func (r *Request) String() string {
	return fmt.Sprintf("request %s (%d passes)", r.id, r.passes)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package script

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPoolExhausted is returned when no engine frees up before the acquire
// timeout.
var ErrPoolExhausted = errors.New("script: engine pool exhausted")

// Pool is a fixed set of reusable engines. Waiters are served in no
// particular order.
type Pool struct {
	engines chan *Engine
	size    int
}

// NewPool creates a pool of size engines. Sizes below one become one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{engines: make(chan *Engine, size), size: size}
	for i := 0; i < size; i++ {
		p.engines <- &Engine{id: i}
	}
	return p
}

// Size returns the number of engines.
func (p *Pool) Size() int { return p.size }

// Available returns the number of idle engines.
func (p *Pool) Available() int { return len(p.engines) }

// Acquire takes an idle engine, waiting up to timeout. A timeout of zero or
// less waits until ctx is done.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Engine, error) {
	select {
	case e := <-p.engines:
		return e, nil
	default:
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case e := <-p.engines:
		return e, nil
	case <-expired:
		return nil, fmt.Errorf("%w after %s (%d engines)", ErrPoolExhausted, timeout, p.size)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release unbinds the engine and returns it to the pool.
func (p *Pool) Release(e *Engine) {
	if e == nil {
		return
	}
	e.host = nil
	select {
	case p.engines <- e:
	default:
		panic("script: released more engines than the pool holds")
	}
}

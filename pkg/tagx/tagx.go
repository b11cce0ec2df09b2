// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package tagx provides the public API for the tagx template engine.
package tagx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"nickandperla.net/tagx/internal/config"
	"nickandperla.net/tagx/internal/eval"
	"nickandperla.net/tagx/internal/render"
	"nickandperla.net/tagx/internal/script"
	"nickandperla.net/tagx/internal/store"
)

// Runtime is a configured template engine bound to one content store. It is
// safe for concurrent renders.
type Runtime struct {
	evaluator *eval.Evaluator
	store     store.Store
	logger    *slog.Logger
	cancel    context.CancelFunc

	evalOpts  []eval.Option
	poolSize  int
	acquire   time.Duration
	sqlDriver string
	sqlDSN    string
	siteFile  string
	watch     bool
	areaAlias string
	language  string
	content   Context
}

// New creates a runtime with the given options. Stores named by options
// are opened here.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if err := r.openStore(ctx); err != nil {
		cancel()
		return nil, err
	}
	if err := r.resolveContent(ctx); err != nil {
		r.Close()
		return nil, err
	}

	evalOpts := []eval.Option{
		eval.WithStore(r.store),
		eval.WithLogger(r.logger),
	}
	if r.poolSize > 0 {
		acquire := r.acquire
		if acquire <= 0 {
			acquire = 5 * time.Second
		}
		evalOpts = append(evalOpts, eval.WithScriptPool(script.NewPool(r.poolSize), acquire))
	}
	r.evaluator = eval.New(append(evalOpts, r.evalOpts...)...)
	return r, nil
}

func (r *Runtime) openStore(ctx context.Context) error {
	switch {
	case r.siteFile != "":
		w, err := store.NewWatcher(ctx, r.siteFile, r.logger)
		if err != nil {
			return fmt.Errorf("site %s: %w", r.siteFile, err)
		}
		if r.watch {
			if err := w.Start(ctx); err != nil {
				w.Close()
				return fmt.Errorf("watch %s: %w", r.siteFile, err)
			}
		}
		r.store = w
	case r.sqlDriver != "":
		s, err := store.OpenSQL(ctx, r.sqlDriver, r.sqlDSN)
		if err != nil {
			return fmt.Errorf("open %s store: %w", r.sqlDriver, err)
		}
		r.store = s
	case r.store == nil:
		r.store = store.NewMemory()
	}
	return nil
}

// resolveContent turns the configured area alias and language into IDs.
func (r *Runtime) resolveContent(ctx context.Context) error {
	if r.areaAlias != "" {
		a, err := r.store.AreaByAlias(ctx, r.areaAlias)
		if err != nil {
			return fmt.Errorf("content area %q: %w", r.areaAlias, err)
		}
		r.content.Area = a.ID
	}
	if r.language != "" {
		l, err := r.store.Language(ctx, r.language)
		if err != nil {
			return fmt.Errorf("content language %q: %w", r.language, err)
		}
		r.content.Language = l.ID
	}
	return nil
}

// NewFromConfig builds a runtime from loaded configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	format, _ := eval.ParseErrorFormat(cfg.ErrorFormat)
	opts := []Option{
		WithTimeout(cfg.Timeout),
		WithErrorFormat(format),
		WithStrict(cfg.Strict),
		WithPack(cfg.Pack),
		WithScriptPool(cfg.Script.PoolSize, cfg.Script.AcquireTimeout),
		WithContent(cfg.Content.Area, cfg.Content.Language, int64(cfg.Content.Version)),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	if cfg.NoStdlib {
		opts = append(opts, WithNoStdlib())
	}
	switch {
	case cfg.Site.File != "":
		opts = append(opts, WithSiteFile(cfg.Site.File, cfg.Site.Watch))
	case cfg.Store.Driver != "" && cfg.Store.Driver != "memory":
		opts = append(opts, WithSQLStore(cfg.Store.Driver, cfg.Store.DSN))
	}
	return New(opts...)
}

// Content returns the default content context.
func (r *Runtime) Content() Context {
	return r.content
}

// Store returns the content store.
func (r *Runtime) Store() Store {
	return r.store
}

// Render expands text. A zero Context uses the runtime's default content.
func (r *Runtime) Render(ctx context.Context, text string, c Context) (*Result, error) {
	if c == (Context{}) {
		c = r.content
	}
	return r.evaluator.Render(ctx, text, c)
}

// RenderFile expands a template file. The output's content type follows
// the file extension, ignoring a trailing .tagx.
func (r *Runtime) RenderFile(ctx context.Context, path string, c Context) (render.Output, *Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return render.Output{}, nil, err
	}
	res, err := r.Render(ctx, string(data), c)
	if res == nil {
		return render.Output{}, nil, err
	}
	name := path
	if filepath.Ext(name) == ".tagx" {
		name = name[:len(name)-len(".tagx")]
	}
	return render.NewOutput(res.Text, filepath.Ext(name)), res, err
}

// RenderArea expands a slot of the area with the given alias, with that
// area as the content context. A missing slot is an error wrapping
// store.ErrNotFound.
func (r *Runtime) RenderArea(ctx context.Context, alias, slot string, c Context) (render.Output, *Result, error) {
	if c == (Context{}) {
		c = r.content
	}
	a, err := r.store.AreaByAlias(ctx, alias)
	if err != nil {
		return render.Output{}, nil, fmt.Errorf("area %q: %w", alias, err)
	}
	c.Area = a.ID
	s, err := r.store.Slot(ctx, a.ID, slot, store.SlotQuery{Language: c.Language, Version: c.Version})
	if err != nil {
		return render.Output{}, nil, fmt.Errorf("slot %q of area %q: %w", slot, alias, err)
	}
	res, err := r.evaluator.Render(ctx, s.Value, c)
	if res == nil {
		return render.Output{}, nil, err
	}
	return render.NewOutput(res.Text, ".html"), res, err
}

// NewSession starts a request whose variables and procedures persist
// across renders, as used by the REPL.
func (r *Runtime) NewSession(ctx context.Context) (*eval.Request, error) {
	return r.evaluator.NewRequest(ctx, r.content)
}

// ErrReadOnly is returned by Import when the store cannot be loaded into.
var ErrReadOnly = errors.New("tagx: store does not accept imports")

// Import loads a YAML site file into the runtime's store.
func (r *Runtime) Import(ctx context.Context, sitePath string) error {
	l, ok := r.store.(store.Loader)
	if !ok {
		return ErrReadOnly
	}
	if err := store.LoadSiteFile(ctx, sitePath, l); err != nil {
		return err
	}
	r.logger.Info("site imported", "path", sitePath)
	return nil
}

// Close stops the site watcher and releases the store.
func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

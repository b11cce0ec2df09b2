// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package tagx

import (
	"log/slog"
	"time"

	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/eval"
	"nickandperla.net/tagx/internal/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithStore uses an existing content store. The runtime closes it on Close.
func WithStore(s Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithMemoryStore configures an empty in-memory store (for testing).
func WithMemoryStore() Option {
	return func(r *Runtime) {
		r.store = store.NewMemory()
	}
}

// WithSQLStore opens a SQL store when the runtime is created. Driver is
// one of sqlite, mysql or postgres.
func WithSQLStore(driver, dsn string) Option {
	return func(r *Runtime) {
		r.sqlDriver = driver
		r.sqlDSN = dsn
	}
}

// WithSQLiteStore configures SQLite persistence at the given path.
func WithSQLiteStore(path string) Option {
	return WithSQLStore("sqlite", path)
}

// WithSiteFile serves content from a YAML site file. With watch set the
// file is reloaded whenever it changes.
func WithSiteFile(path string, watch bool) Option {
	return func(r *Runtime) {
		r.siteFile = path
		r.watch = watch
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithTimeout sets the per-render deadline. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithTimeout(timeout))
	}
}

// WithScriptPool sizes the script engine pool and how long a render waits
// for a free engine.
func WithScriptPool(size int, acquire time.Duration) Option {
	return func(r *Runtime) {
		r.poolSize = size
		r.acquire = acquire
	}
}

// WithDebugger installs a debug hook that sees every complex tag.
func WithDebugger(h debug.Hook) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithDebugger(h))
	}
}

// WithErrorFormat selects how inline error markers are written.
func WithErrorFormat(f ErrorFormat) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithErrorFormat(f))
	}
}

// WithStrict aborts a render on its first error.
func WithStrict(strict bool) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithStrict(strict))
	}
}

// WithPack controls removal of blank lines from final output.
func WithPack(pack bool) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithPack(pack))
	}
}

// WithPrelude adds procedure definitions loaded before every render, after
// the standard library.
func WithPrelude(source string) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithPrelude(source))
	}
}

// WithNoStdlib disables loading the standard library prelude.
func WithNoStdlib() Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithNoStdlib())
	}
}

// WithContent sets the default content context. Area is an alias and
// language an ID or alias; both are resolved against the store when the
// runtime is created.
func WithContent(area, language string, version int64) Option {
	return func(r *Runtime) {
		r.areaAlias = area
		r.language = language
		r.content.Version = version
	}
}

// Store is the content store interface.
type Store = store.Store

// Context is the content context of a render.
type Context = eval.Context

// Result is the outcome of a render.
type Result = eval.Result

// Error is a render error with its kind and position.
type Error = eval.Error

// ErrorFormat selects inline error marker syntax.
type ErrorFormat = eval.ErrorFormat

const (
	FormatHTML  = eval.FormatHTML
	FormatPlain = eval.FormatPlain
)

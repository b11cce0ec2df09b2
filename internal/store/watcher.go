// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher serves a YAML site from memory and reloads it when the file
// changes. Writes go to the current snapshot and are lost on reload.
type Watcher struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Memory]
	reloads atomic.Uint64

	fs    *fsnotify.Watcher
	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// debounce is the quiet period after the last change before reloading.
const debounce = 100 * time.Millisecond

// NewWatcher loads the site file at path. Call Start to follow changes.
func NewWatcher(ctx context.Context, path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{path: path, logger: logger, done: make(chan struct{})}
	if err := w.Reload(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload rebuilds the snapshot from the site file. On error the previous
// snapshot stays active.
func (w *Watcher) Reload(ctx context.Context) error {
	m := NewMemory()
	if err := LoadSiteFile(ctx, w.path, m); err != nil {
		return err
	}
	w.current.Store(m)
	w.reloads.Add(1)
	return nil
}

// Reloads returns the number of successful loads.
func (w *Watcher) Reloads() uint64 { return w.reloads.Load() }

// Start begins watching the site file's directory.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.fs = fsw
	w.logger.Info("watching site", "path", w.path)
	go w.eventLoop(ctx)
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// schedule reloads once changes have settled.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(debounce)
		return
	}
	w.timer = time.AfterFunc(debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.Reload(ctx); err != nil {
			w.logger.Error("site reload failed", "path", w.path, "error", err)
			return
		}
		w.logger.Info("site reloaded", "path", w.path)
	})
}

func (w *Watcher) snapshot() *Memory { return w.current.Load() }

func (w *Watcher) Area(ctx context.Context, id int64) (Area, error) {
	return w.snapshot().Area(ctx, id)
}

func (w *Watcher) AreaByAlias(ctx context.Context, alias string) (Area, error) {
	return w.snapshot().AreaByAlias(ctx, alias)
}

func (w *Watcher) Children(ctx context.Context, id int64) ([]Area, error) {
	return w.snapshot().Children(ctx, id)
}

func (w *Watcher) Slot(ctx context.Context, areaID int64, name string, q SlotQuery) (Slot, error) {
	return w.snapshot().Slot(ctx, areaID, name, q)
}

func (w *Watcher) Resource(ctx context.Context, areaID int64, name string) (Resource, error) {
	return w.snapshot().Resource(ctx, areaID, name)
}

func (w *Watcher) Version(ctx context.Context, id int64) (Version, error) {
	return w.snapshot().Version(ctx, id)
}

func (w *Watcher) Languages(ctx context.Context) ([]Language, error) {
	return w.snapshot().Languages(ctx)
}

func (w *Watcher) Language(ctx context.Context, idOrAlias string) (Language, error) {
	return w.snapshot().Language(ctx, idOrAlias)
}

func (w *Watcher) SetSlotValue(ctx context.Context, sw SlotWrite) Result {
	return w.snapshot().SetSlotValue(ctx, sw)
}

func (w *Watcher) LockOutput(ctx context.Context, name string) Result {
	return w.snapshot().LockOutput(ctx, name)
}

func (w *Watcher) UnlockOutput(ctx context.Context, name string) Result {
	return w.snapshot().UnlockOutput(ctx, name)
}

// Close stops watching. The last snapshot remains readable.
func (w *Watcher) Close() error {
	if w.fs == nil {
		return nil
	}
	err := w.fs.Close()
	<-w.done
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

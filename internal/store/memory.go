// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type slotID struct {
	area    int64
	name    string
	lang    string
	version int64
}

type resourceID struct {
	area int64
	name string
}

// Memory is an in-memory store for tests and YAML sites.
type Memory struct {
	mu        sync.RWMutex
	areas     map[int64]Area
	slots     map[slotID]string
	resources map[resourceID]Resource
	versions  map[int64]Version
	languages []Language
	locks     map[string]bool
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		areas:     make(map[int64]Area),
		slots:     make(map[slotID]string),
		resources: make(map[resourceID]Resource),
		versions:  make(map[int64]Version),
		locks:     make(map[string]bool),
	}
}

// Area returns the area with the given id.
func (m *Memory) Area(_ context.Context, id int64) (Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return Area{}, ErrNotFound
	}
	return a, nil
}

// AreaByAlias returns the area with the given alias.
func (m *Memory) AreaByAlias(_ context.Context, alias string) (Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.areas {
		if a.Alias == alias {
			return a, nil
		}
	}
	return Area{}, ErrNotFound
}

// Children returns the child areas of id ordered by Order then ID.
func (m *Memory) Children(_ context.Context, id int64) ([]Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Area
	for _, a := range m.areas {
		if a.ParentID == id && a.ID != id {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Slot resolves a slot with language, version and ancestor fallback.
func (m *Memory) Slot(ctx context.Context, areaID int64, name string, q SlotQuery) (Slot, error) {
	return resolveSlot(ctx, m, areaID, name, q)
}

func (m *Memory) rawSlot(_ context.Context, areaID int64, name, lang string, version int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[slotID{areaID, name, lang, version}]
	return v, ok, nil
}

// Resource returns a named resource of an area.
func (m *Memory) Resource(_ context.Context, areaID int64, name string) (Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[resourceID{areaID, name}]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return r, nil
}

// Version returns a version by id.
func (m *Memory) Version(_ context.Context, id int64) (Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		if id == DefaultVersion {
			return Version{ID: DefaultVersion, Name: "default", Default: true}, nil
		}
		return Version{}, ErrNotFound
	}
	return v, nil
}

// Languages returns all languages in insertion order.
func (m *Memory) Languages(_ context.Context) ([]Language, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Language, len(m.languages))
	copy(out, m.languages)
	return out, nil
}

// Language finds a language by id or alias.
func (m *Memory) Language(_ context.Context, idOrAlias string) (Language, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id := CanonicalLanguage(idOrAlias)
	for _, l := range m.languages {
		if l.ID == id || strings.EqualFold(l.Alias, idOrAlias) {
			return l, nil
		}
	}
	return Language{}, ErrNotFound
}

// SetSlotValue writes a slot value. The area must exist.
func (m *Memory) SetSlotValue(_ context.Context, w SlotWrite) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.areas[w.AreaID]; !ok {
		return Result{Code: ResultNotFound, Message: "area does not exist"}
	}
	m.slots[slotID{w.AreaID, w.Name, CanonicalLanguage(w.Language), w.Version}] = w.Value
	return Result{}
}

// LockOutput takes a named output lock.
func (m *Memory) LockOutput(_ context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[name] {
		return Result{Code: ResultLocked, Message: name}
	}
	m.locks[name] = true
	return Result{}
}

// UnlockOutput releases a named output lock.
func (m *Memory) UnlockOutput(_ context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locks[name] {
		return Result{Code: ResultNotFound, Message: name}
	}
	delete(m.locks, name)
	return Result{}
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// PutArea adds or replaces an area.
func (m *Memory) PutArea(_ context.Context, a Area) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.areas[a.ID] = a
	return nil
}

// PutSlot adds or replaces a slot value without checking the area.
func (m *Memory) PutSlot(_ context.Context, w SlotWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slotID{w.AreaID, w.Name, CanonicalLanguage(w.Language), w.Version}] = w.Value
	return nil
}

// PutResource adds or replaces a resource.
func (m *Memory) PutResource(_ context.Context, r Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resourceID{r.AreaID, r.Name}] = r
	return nil
}

// PutVersion adds or replaces a version.
func (m *Memory) PutVersion(_ context.Context, v Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[v.ID] = v
	return nil
}

// PutLanguage adds or replaces a language.
func (m *Memory) PutLanguage(_ context.Context, l Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = CanonicalLanguage(l.ID)
	for i, existing := range m.languages {
		if existing.ID == l.ID {
			m.languages[i] = l
			return nil
		}
	}
	m.languages = append(m.languages, l)
	return nil
}

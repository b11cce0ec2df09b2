// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package store provides the content model behind tagx: areas, slots,
// resources, versions and languages.
package store

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// DefaultVersion is the version id used when a query names none.
const DefaultVersion int64 = 0

// Area is a node of the content hierarchy.
type Area struct {
	ID       int64
	Alias    string
	ParentID int64 // 0 for root areas
	Name     string
	Order    int
}

// Slot is a resolved slot value.
type Slot struct {
	AreaID   int64 // area the value was found in
	Name     string
	Language string
	Version  int64
	Value    string
}

// Resource is a binary or text attachment of an area.
type Resource struct {
	AreaID   int64
	Name     string
	MimeType string
	Data     []byte
}

// Version is a named content version.
type Version struct {
	ID      int64
	Name    string
	Default bool
}

// Language is a content language. ID is a canonical BCP 47 tag.
type Language struct {
	ID      string
	Alias   string
	Name    string
	Default bool
}

// SlotQuery selects how a slot lookup falls back.
type SlotQuery struct {
	Language      string
	Version       int64
	SkipDefault   bool // do not fall back to the default language
	AncestorsOnly bool // start the search at the parent area
	MaxDepth      int  // ancestor levels to search, 0 for unbounded
}

// SlotWrite is a slot value update.
type SlotWrite struct {
	AreaID   int64
	Name     string
	Language string
	Version  int64
	Value    string
}

// ResultCode classifies the outcome of a write.
type ResultCode int

const (
	ResultOK ResultCode = iota
	ResultNotFound
	ResultLocked
	ResultFailed
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not found"
	case ResultLocked:
		return "locked"
	}
	return "failed"
}

// Result is the outcome of a write. Writes never return Go errors.
type Result struct {
	Code    ResultCode
	Message string
}

// OK reports whether the write succeeded.
func (r Result) OK() bool { return r.Code == ResultOK }

// Err converts a failed result into an error.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	if r.Message == "" {
		return errors.New("store: " + r.Code.String())
	}
	return errors.New("store: " + r.Code.String() + ": " + r.Message)
}

func failed(err error) Result {
	return Result{Code: ResultFailed, Message: err.Error()}
}

// Store is the read/write interface to the content model.
type Store interface {
	Area(ctx context.Context, id int64) (Area, error)
	AreaByAlias(ctx context.Context, alias string) (Area, error)
	Children(ctx context.Context, id int64) ([]Area, error)
	Slot(ctx context.Context, areaID int64, name string, q SlotQuery) (Slot, error)
	Resource(ctx context.Context, areaID int64, name string) (Resource, error)
	Version(ctx context.Context, id int64) (Version, error)
	Languages(ctx context.Context) ([]Language, error)
	Language(ctx context.Context, idOrAlias string) (Language, error)
	SetSlotValue(ctx context.Context, w SlotWrite) Result
	LockOutput(ctx context.Context, name string) Result
	UnlockOutput(ctx context.Context, name string) Result
	Close() error
}

// Loader receives records from an importer.
type Loader interface {
	PutArea(ctx context.Context, a Area) error
	PutSlot(ctx context.Context, w SlotWrite) error
	PutResource(ctx context.Context, r Resource) error
	PutVersion(ctx context.Context, v Version) error
	PutLanguage(ctx context.Context, l Language) error
}

// CanonicalLanguage normalizes a language tag. Unparseable input is returned
// lower-cased.
func CanonicalLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil {
		return strings.ToLower(s)
	}
	return tag.String()
}

// backend is the raw lookup surface shared by the Memory and SQL stores.
type backend interface {
	Area(ctx context.Context, id int64) (Area, error)
	Languages(ctx context.Context) ([]Language, error)
	rawSlot(ctx context.Context, areaID int64, name, lang string, version int64) (string, bool, error)
}

func defaultLanguage(ctx context.Context, b backend) (string, error) {
	langs, err := b.Languages(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range langs {
		if l.Default {
			return l.ID, nil
		}
	}
	return "", nil
}

type slotKey struct {
	lang    string
	version int64
}

// candidates lists the (language, version) pairs tried within one area.
func candidates(q SlotQuery, defLang string) []slotKey {
	lang := CanonicalLanguage(q.Language)
	if lang == "" {
		lang = defLang
	}
	order := []slotKey{{lang, q.Version}}
	if !q.SkipDefault {
		order = append(order, slotKey{defLang, q.Version})
	}
	order = append(order, slotKey{lang, DefaultVersion})
	if !q.SkipDefault {
		order = append(order, slotKey{defLang, DefaultVersion})
	}
	seen := make(map[slotKey]bool, len(order))
	out := order[:0]
	for _, k := range order {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// resolveSlot walks the area and its ancestors looking for name.
func resolveSlot(ctx context.Context, b backend, areaID int64, name string, q SlotQuery) (Slot, error) {
	defLang, err := defaultLanguage(ctx, b)
	if err != nil {
		return Slot{}, err
	}
	keys := candidates(q, defLang)

	area, err := b.Area(ctx, areaID)
	if err != nil {
		return Slot{}, err
	}
	depth := 0
	if q.AncestorsOnly {
		if area.ParentID == 0 {
			return Slot{}, ErrNotFound
		}
		if area, err = b.Area(ctx, area.ParentID); err != nil {
			return Slot{}, err
		}
		depth = 1
	}
	visited := make(map[int64]bool)
	for {
		if visited[area.ID] {
			return Slot{}, ErrNotFound
		}
		visited[area.ID] = true
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return Slot{}, err
			}
			v, ok, err := b.rawSlot(ctx, area.ID, name, k.lang, k.version)
			if err != nil {
				return Slot{}, err
			}
			if ok {
				return Slot{AreaID: area.ID, Name: name, Language: k.lang, Version: k.version, Value: v}, nil
			}
		}
		if area.ParentID == 0 || (q.MaxDepth > 0 && depth >= q.MaxDepth) {
			return Slot{}, ErrNotFound
		}
		depth++
		if area, err = b.Area(ctx, area.ParentID); err != nil {
			return Slot{}, err
		}
	}
}

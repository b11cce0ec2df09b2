// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"encoding/base64"

	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/store"
)

// slotOptions narrows a slot lookup.
type slotOptions struct {
	skipDefault bool
	ancestors   bool
	depth       int
}

// slotValue reads a slot's raw value for the state's language and version.
// Store errors are returned unwrapped.
func (st *State) slotValue(name string, area int64, o slotOptions) (string, error) {
	s, err := st.req.ev.store.Slot(st.req.ctx, area, name, store.SlotQuery{
		Language:      st.content.Language,
		Version:       st.content.Version,
		SkipDefault:   o.skipDefault,
		AncestorsOnly: o.ancestors,
		MaxDepth:      o.depth,
	})
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// language returns the content language, or the store's default language.
func (st *State) language() (string, error) {
	if st.content.Language != "" {
		return st.content.Language, nil
	}
	langs, err := st.req.ev.store.Languages(st.req.ctx)
	if err != nil {
		return "", storeErr(err)
	}
	for _, l := range langs {
		if l.Default {
			return l.ID, nil
		}
	}
	return "", nil
}

func (st *State) resourceText(name string, area int64) (string, error) {
	r, err := st.req.ev.store.Resource(st.req.ctx, area, name)
	if err != nil {
		return "", storeErr(err)
	}
	return string(r.Data), nil
}

// slotName reads the name property, or the first bare word.
func slotName(p *Properties) (string, error) {
	if p.Has("name") {
		return p.RequiredText("name")
	}
	if n, ok := p.Positional(0); ok {
		return n, nil
	}
	return "", missingProp("name")
}

// builtinSlot inserts a slot value, expanded under the content context of
// the area it was read for. With raw set the value is inserted as literal
// text.
func builtinSlot(st *State, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	c, err := st.contentFor(p)
	if err != nil {
		return "", err
	}
	var o slotOptions
	if o.skipDefault, err = p.Bool("skipDefault", false); err != nil {
		return "", err
	}
	if o.ancestors, err = p.Bool("ancestors", false); err != nil {
		return "", err
	}
	depth, err := p.Int("depth", 0)
	if err != nil {
		return "", err
	}
	o.depth = int(depth)
	raw, err := p.Bool("raw", false)
	if err != nil {
		return "", err
	}

	prev := st.content
	st.content = c
	text, err := st.slotValue(name, c.Area, o)
	st.content = prev
	if err != nil {
		if p.Has("default") {
			return p.Text("default", "")
		}
		return "", storeErr(err)
	}
	if raw {
		return scanner.Escape(text), nil
	}
	return st.expandChild(text, c)
}

// builtinSetSlot writes a slot value to the store.
func builtinSetSlot(st *State, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	c, err := st.contentFor(p)
	if err != nil {
		return "", err
	}
	v, err := p.Text("value", "")
	if err != nil {
		return "", err
	}
	lang := c.Language
	if lang == "" {
		if lang, err = st.language(); err != nil {
			return "", err
		}
	}
	res := st.req.ev.store.SetSlotValue(st.req.ctx, store.SlotWrite{
		AreaID:   c.Area,
		Name:     name,
		Language: lang,
		Version:  c.Version,
		Value:    v,
	})
	return "", storeErr(res.Err())
}

// builtinResource inserts an area resource as text, or as a data URI when
// the uri flag is set.
func builtinResource(st *State, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	c, err := st.contentFor(p)
	if err != nil {
		return "", err
	}
	uri, err := p.Bool("uri", false)
	if err != nil {
		return "", err
	}
	r, err := st.req.ev.store.Resource(st.req.ctx, c.Area, name)
	if err != nil {
		return "", storeErr(err)
	}
	if !uri {
		return string(r.Data), nil
	}
	mimeType := r.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(r.Data), nil
}

func builtinLockOutput(st *State, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	return "", storeErr(st.req.ev.store.LockOutput(st.req.ctx, name).Err())
}

func builtinUnlockOutput(st *State, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	return "", storeErr(st.req.ev.store.UnlockOutput(st.req.ctx, name).Err())
}

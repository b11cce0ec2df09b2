// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"bytes"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"nickandperla.net/tagx/internal/scanner"
	"nickandperla.net/tagx/internal/token"
)

func builtinRem(st *State, body string, p *Properties) (string, error) {
	return "", nil
}

// builtinPack expands its body and marks it for blank-line packing.
func builtinPack(st *State, body string, p *Properties) (string, error) {
	out, err := st.expand(body)
	if err != nil {
		return "", err
	}
	return string(token.RunePackStart) + out + string(token.RunePackEnd), nil
}

// builtinNoIndent expands its body and marks it for dedenting.
func builtinNoIndent(st *State, body string, p *Properties) (string, error) {
	out, err := st.expand(body)
	if err != nil {
		return "", err
	}
	return string(token.RuneNoIndentStart) + out + string(token.RuneNoIndentEnd), nil
}

// builtinLiteral emits its body verbatim; tags inside it are never run.
func builtinLiteral(st *State, body string, p *Properties) (string, error) {
	return scanner.Escape(body), nil
}

// builtinIndent prefixes every non-empty line of its expanded body.
func builtinIndent(st *State, body string, p *Properties) (string, error) {
	count, err := p.Int("count", 2)
	if err != nil {
		return "", err
	}
	if count < 0 {
		return "", errorf(KindEval, "INDENT count must not be negative, got %d", count)
	}
	unit, err := p.Text("text", " ")
	if err != nil {
		return "", err
	}
	out, err := st.expand(body)
	if err != nil {
		return "", err
	}
	return indent(out, strings.Repeat(unit, int(count))), nil
}

// builtinBookmark leaves a named placeholder for REPLACE_BOOKMARK content.
func builtinBookmark(st *State, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	return bookmarkPlaceholder(name), nil
}

// builtinReplaceBookmark registers its expanded body as the content of a
// bookmark. With append set the body is added to earlier content.
func builtinReplaceBookmark(st *State, body string, p *Properties) (string, error) {
	name, err := slotName(p)
	if err != nil {
		return "", err
	}
	appendTo, err := p.Bool("append", false)
	if err != nil {
		return "", err
	}
	out, err := st.expand(body)
	if err != nil {
		return "", err
	}
	if appendTo {
		out = st.req.bookmarks[name] + out
	}
	st.req.bookmarks[name] = out
	return "", nil
}

// builtinIncludeOnce expands its body the first time a name is seen in the
// request and emits nothing afterwards. Without a name the body text is the
// key.
func builtinIncludeOnce(st *State, body string, p *Properties) (string, error) {
	key := body
	if p.Has("name") || p.Has("key") {
		prop := "name"
		if !p.Has("name") {
			prop = "key"
		}
		k, err := p.RequiredText(prop)
		if err != nil {
			return "", err
		}
		key = "name:" + k
	} else if n, ok := p.Positional(0); ok {
		key = "name:" + n
	} else {
		key = "body:" + key
	}
	if st.req.included[key] {
		return "", nil
	}
	st.req.included[key] = true
	return st.expand(body)
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// builtinMarkdown expands its body and renders it as GitHub-flavored
// Markdown.
func builtinMarkdown(st *State, body string, p *Properties) (string, error) {
	out, err := st.expand(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(dedent(out)), &buf); err != nil {
		return "", errorf(KindEval, "markdown: %v", err)
	}
	return buf.String(), nil
}

// builtinDate formats a date in the content language. The value defaults to
// the request start time and accepts any common date notation.
func builtinDate(st *State, p *Properties) (string, error) {
	layout, err := p.Text("format", "2006-01-02")
	if err != nil {
		return "", err
	}
	loc := time.UTC
	if p.Has("zone") {
		zone, err := p.Text("zone", "")
		if err != nil {
			return "", err
		}
		if loc, err = time.LoadLocation(zone); err != nil {
			return "", errorf(KindEval, "DATE zone %q: %v", zone, err)
		}
	}
	t := st.req.started.In(loc)
	if p.Has("value") {
		s, err := p.Text("value", "")
		if err != nil {
			return "", err
		}
		if t, err = dateparse.ParseIn(s, loc); err != nil {
			return "", errorf(KindEval, "DATE value %q: %v", s, err)
		}
	}
	lang, err := st.language()
	if err != nil {
		return "", err
	}
	if p.Has("language") {
		if lang, err = p.Text("language", lang); err != nil {
			return "", err
		}
	}
	return monday.Format(t, layout, mondayLocale(lang)), nil
}

// mondayLocale maps a language tag to a date-name locale, defaulting to US
// English.
func mondayLocale(lang string) monday.Locale {
	lang = strings.ToLower(strings.ReplaceAll(lang, "-", "_"))
	locales := map[string]monday.Locale{
		"en":    monday.LocaleEnUS,
		"en_us": monday.LocaleEnUS,
		"en_gb": monday.LocaleEnGB,
		"de":    monday.LocaleDeDE,
		"de_de": monday.LocaleDeDE,
		"de_at": monday.LocaleDeDE,
		"de_ch": monday.LocaleDeDE,
		"fr":    monday.LocaleFrFR,
		"fr_fr": monday.LocaleFrFR,
		"fr_ca": monday.LocaleFrCA,
		"es":    monday.LocaleEsES,
		"it":    monday.LocaleItIT,
		"pt":    monday.LocalePtPT,
		"pt_br": monday.LocalePtBR,
		"nl":    monday.LocaleNlNL,
		"nl_be": monday.LocaleNlBE,
		"ru":    monday.LocaleRuRU,
		"pl":    monday.LocalePlPL,
		"sv":    monday.LocaleSvSE,
		"da":    monday.LocaleDaDK,
		"fi":    monday.LocaleFiFI,
		"nb":    monday.LocaleNbNO,
		"ja":    monday.LocaleJaJP,
		"zh":    monday.LocaleZhCN,
		"ko":    monday.LocaleKoKR,
	}
	if l, ok := locales[lang]; ok {
		return l
	}
	if i := strings.IndexByte(lang, '_'); i > 0 {
		if l, ok := locales[lang[:i]]; ok {
			return l
		}
	}
	return monday.LocaleEnUS
}

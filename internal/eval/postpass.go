// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"nickandperla.net/tagx/internal/token"
)

// postPass runs the whole-buffer steps that follow every top-level pass:
// bookmark substitution, NOINDENT regions and blank-line packing.
func (r *Request) postPass(text string) string {
	text = r.substituteBookmarks(text)
	text = rewriteRegions(text, token.RuneNoIndentStart, token.RuneNoIndentEnd, dedent)
	text = rewriteRegions(text, token.RunePackStart, token.RunePackEnd, packLines)
	if r.ev.pack {
		text = packLines(text)
	}
	return text
}

func bookmarkPlaceholder(name string) string {
	return string(token.RuneBookmarkStart) + name + string(token.RuneBookmarkEnd)
}

// substituteBookmarks replaces placeholders whose content has been
// registered. Unregistered placeholders stay for later passes.
func (r *Request) substituteBookmarks(text string) string {
	if len(r.bookmarks) == 0 || !strings.ContainsRune(text, token.RuneBookmarkStart) {
		return text
	}
	for name, content := range r.bookmarks {
		text = strings.ReplaceAll(text, bookmarkPlaceholder(name), content)
	}
	return text
}

// dropBookmarks removes placeholders that never received content.
func dropBookmarks(text string) string {
	for {
		i := strings.IndexRune(text, token.RuneBookmarkStart)
		if i < 0 {
			return text
		}
		j := strings.IndexRune(text[i:], token.RuneBookmarkEnd)
		if j < 0 {
			return text[:i] + text[i+len(string(token.RuneBookmarkStart)):]
		}
		text = text[:i] + text[i+j+len(string(token.RuneBookmarkEnd)):]
	}
}

// rewriteRegions applies fn to every innermost start..end region and drops
// the sentinels. Unbalanced sentinels are removed.
func rewriteRegions(text string, start, end rune, fn func(string) string) string {
	s, e := string(start), string(end)
	for {
		j := strings.Index(text, e)
		if j < 0 {
			return strings.ReplaceAll(text, s, "")
		}
		i := strings.LastIndex(text[:j], s)
		if i < 0 {
			text = text[:j] + text[j+len(e):]
			continue
		}
		text = text[:i] + fn(text[i+len(s):j]) + text[j+len(e):]
	}
}

// packLines removes blank and whitespace-only lines.
func packLines(text string) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// dedent strips the leading whitespace common to all non-blank lines.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ws := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = ws, false
			continue
		}
		for !strings.HasPrefix(ws, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return text
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(lines, "\n")
}

// indent prefixes every non-blank line.
func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

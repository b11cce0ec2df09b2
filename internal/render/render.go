// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package render writes expanded output to a byte stream with optional
// compression.
package render

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Output is a fully expanded buffer plus the metadata a transport needs.
type Output struct {
	Text         string
	ContentType  string
	Extension    string
	NotLocalized bool
}

// NewOutput derives the content type from an extension such as ".html".
func NewOutput(text, ext string) Output {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	return Output{Text: text, ContentType: ct, Extension: ext}
}

// Encoding is a content encoding.
type Encoding string

const (
	Identity Encoding = "identity"
	Gzip     Encoding = "gzip"
	Zstd     Encoding = "zstd"
)

// ParseEncoding maps a name to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "identity":
		return Identity, nil
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	}
	return "", fmt.Errorf("render: unknown encoding %q", s)
}

// Meta describes what Write produced.
type Meta struct {
	ContentType     string
	ContentEncoding Encoding
	Length          int // uncompressed bytes
}

// Writer writes outputs. The zero value writes uncompressed.
type Writer struct {
	Encoding Encoding
	Level    string // "fastest", "default" or "best"
	MinSize  int    // outputs smaller than this are not compressed
}

func (w Writer) gzipLevel() int {
	switch w.Level {
	case "fastest":
		return gzip.BestSpeed
	case "best":
		return gzip.BestCompression
	}
	return gzip.DefaultCompression
}

func (w Writer) zstdLevel() zstd.EncoderLevel {
	switch w.Level {
	case "fastest":
		return zstd.SpeedFastest
	case "best":
		return zstd.SpeedBestCompression
	}
	return zstd.SpeedDefault
}

// Write encodes out onto dst.
func (w Writer) Write(dst io.Writer, out Output) (Meta, error) {
	meta := Meta{ContentType: out.ContentType, ContentEncoding: Identity, Length: len(out.Text)}
	enc := w.Encoding
	if enc == "" || len(out.Text) < w.MinSize {
		enc = Identity
	}
	switch enc {
	case Identity:
		_, err := io.WriteString(dst, out.Text)
		return meta, err
	case Gzip:
		zw, err := gzip.NewWriterLevel(dst, w.gzipLevel())
		if err != nil {
			return meta, err
		}
		if _, err := io.WriteString(zw, out.Text); err != nil {
			zw.Close()
			return meta, err
		}
		meta.ContentEncoding = Gzip
		return meta, zw.Close()
	case Zstd:
		zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(w.zstdLevel()))
		if err != nil {
			return meta, err
		}
		if _, err := io.WriteString(zw, out.Text); err != nil {
			zw.Close()
			return meta, err
		}
		meta.ContentEncoding = Zstd
		return meta, zw.Close()
	}
	return meta, fmt.Errorf("render: unknown encoding %q", enc)
}

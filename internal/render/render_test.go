// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package render

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutput(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", NewOutput("x", "html").ContentType)
	assert.Equal(t, "text/html; charset=utf-8", NewOutput("x", "").ContentType)
	assert.True(t, strings.HasPrefix(NewOutput("x", ".css").ContentType, "text/css"))
}

func TestWriteIdentity(t *testing.T) {
	var buf bytes.Buffer
	meta, err := Writer{}.Write(&buf, NewOutput("hello", ".txt"))
	require.NoError(t, err)
	assert.Equal(t, Identity, meta.ContentEncoding)
	assert.Equal(t, "hello", buf.String())
}

func TestWriteGzip(t *testing.T) {
	text := strings.Repeat("tagx ", 100)
	var buf bytes.Buffer
	meta, err := Writer{Encoding: Gzip, Level: "best"}.Write(&buf, NewOutput(text, ".html"))
	require.NoError(t, err)
	assert.Equal(t, Gzip, meta.ContentEncoding)
	assert.Equal(t, len(text), meta.Length)

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))
}

func TestWriteZstd(t *testing.T) {
	text := strings.Repeat("level ", 50)
	var buf bytes.Buffer
	_, err := Writer{Encoding: Zstd}.Write(&buf, NewOutput(text, ".html"))
	require.NoError(t, err)

	zr, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer zr.Close()
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))
}

func TestMinSizeSkipsCompression(t *testing.T) {
	var buf bytes.Buffer
	meta, err := Writer{Encoding: Gzip, MinSize: 1024}.Write(&buf, NewOutput("tiny", ".html"))
	require.NoError(t, err)
	assert.Equal(t, Identity, meta.ContentEncoding)
	assert.Equal(t, "tiny", buf.String())
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": Identity, "none": Identity, "GZIP": Gzip, "zstd": Zstd} {
		got, err := ParseEncoding(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseEncoding("brotli")
	assert.Error(t, err)
}

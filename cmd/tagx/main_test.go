// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/tagx/internal/config"
)

const testSite = `
languages:
  - id: en
    name: English
    default: true
areas:
  - id: 1
    alias: home
    name: Home
    slots:
      title: Welcome
    children:
      - id: 2
        alias: about
        name: About
        slots:
          title: About us
`

// run executes the CLI with args and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenderEval(t *testing.T) {
	out, err := run(t, "", "render", "--plain", "-e", `[@EXPR value=2*3]`)
	require.NoError(t, err)
	assert.Equal(t, "6", out)
}

func TestRenderStdin(t *testing.T) {
	out, err := run(t, `[@LOOP count=3 index=i][@EXPR value=i][/@LOOP]`, "render", "--plain")
	require.NoError(t, err)
	assert.Equal(t, "012", out)
}

func TestRenderFileWithSite(t *testing.T) {
	dir := t.TempDir()
	site := writeFile(t, dir, "site.yaml", testSite)
	page := writeFile(t, dir, "page.html.tagx", `<h1>[@SLOT name=title]</h1>`)

	out, err := run(t, "", "--site", site, "--area", "home", "render", page)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Welcome</h1>", out)
}

func TestRenderSlot(t *testing.T) {
	site := writeFile(t, t.TempDir(), "site.yaml", testSite)

	out, err := run(t, "", "--site", site, "--area", "about", "render", "--slot", "title")
	require.NoError(t, err)
	assert.Equal(t, "About us", out)

	_, err = run(t, "", "--site", site, "render", "--slot", "title")
	assert.ErrorContains(t, err, "--area")
}

func TestRenderGzip(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "tagx.yaml", "error_format: plain\noutput:\n  min_size: 0\n")

	out, err := run(t, "", "--config", cfg, "render", "--encoding", "gzip", "-e", "hello")
	require.NoError(t, err)
	zr, err := gzip.NewReader(strings.NewReader(out))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestRenderFailureReported(t *testing.T) {
	out, err := run(t, "", "render", "--plain", "-e", `a[@SLOT name=missing]b`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error")
	assert.True(t, strings.HasPrefix(out, "a"))
	assert.True(t, strings.HasSuffix(out, "b"))
}

func TestImportThenRender(t *testing.T) {
	dir := t.TempDir()
	site := writeFile(t, dir, "site.yaml", testSite)
	db := filepath.Join(dir, "content.db")

	out, err := run(t, "", "--driver", "sqlite", "--dsn", db, "import", site)
	require.NoError(t, err)
	assert.Contains(t, out, "imported")

	out, err = run(t, "", "--driver", "sqlite", "--dsn", db, "--area", "home", "render", "-e", `[@SLOT name=title]`)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", out)
}

func TestImportNeedsPersistentStore(t *testing.T) {
	site := writeFile(t, t.TempDir(), "site.yaml", testSite)
	_, err := run(t, "", "import", site)
	assert.Error(t, err)
}

func TestInvalidFlagValue(t *testing.T) {
	_, err := run(t, "", "--log-level", "loud", "render", "-e", "x")
	assert.ErrorContains(t, err, "log level")
}

func TestREPLPersistsState(t *testing.T) {
	in := "[@VAR name=x value=2]\n[@EXPR value=x*21]\n"
	out, err := run(t, in, "--plain", "repl")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestREPLContinuation(t *testing.T) {
	in := "[@EXPR value=1]\\\n[@EXPR value=2]\n"
	out, err := run(t, in, "--plain", "repl")
	require.NoError(t, err)
	assert.Contains(t, out, "1\n2")
	assert.Contains(t, out, contPrompt)
}

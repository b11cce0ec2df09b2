// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSite = `
languages:
  - id: en
    name: English
    default: true
  - id: de-de
    alias: german
    name: Deutsch
versions:
  - id: 0
    name: live
    default: true
  - id: 2
    name: draft
areas:
  - id: 1
    alias: home
    name: Home
    slots:
      title: Welcome
      footer:
        en: Bye
        de-DE: Tschüss
      headline@2: Draft headline
    resources:
      note.txt:
        text: hello
    children:
      - id: 2
        alias: about
        name: About
        slots:
          title: About us
        children:
          - id: 3
            alias: team
            name: Team
`

func loadTestSite(t *testing.T, dst Loader) {
	t.Helper()
	if err := LoadSite(context.Background(), strings.NewReader(testSite), ".", dst); err != nil {
		t.Fatalf("LoadSite failed: %v", err)
	}
}

// exerciseStore runs the shared store contract against s.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	a, err := s.AreaByAlias(ctx, "team")
	if err != nil {
		t.Fatalf("AreaByAlias failed: %v", err)
	}
	if a.ID != 3 || a.ParentID != 2 {
		t.Errorf("unexpected area %+v", a)
	}
	if _, err := s.Area(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	kids, err := s.Children(ctx, 1)
	if err != nil || len(kids) != 1 || kids[0].Alias != "about" {
		t.Errorf("unexpected children %+v (%v)", kids, err)
	}

	tests := []struct {
		area int64
		name string
		q    SlotQuery
		want string
		from int64
	}{
		{1, "title", SlotQuery{}, "Welcome", 1},
		{3, "title", SlotQuery{}, "About us", 2},
		{2, "title", SlotQuery{AncestorsOnly: true}, "Welcome", 1},
		{1, "footer", SlotQuery{Language: "de-DE"}, "Tschüss", 1},
		{1, "footer", SlotQuery{Language: "fr"}, "Bye", 1},
		{1, "headline", SlotQuery{Version: 2}, "Draft headline", 1},
	}
	for _, tt := range tests {
		slot, err := s.Slot(ctx, tt.area, tt.name, tt.q)
		if err != nil {
			t.Errorf("%d/%s: unexpected error %v", tt.area, tt.name, err)
			continue
		}
		if slot.Value != tt.want || slot.AreaID != tt.from {
			t.Errorf("%d/%s: expected %q from %d, got %q from %d", tt.area, tt.name, tt.want, tt.from, slot.Value, slot.AreaID)
		}
	}

	if _, err := s.Slot(ctx, 1, "footer", SlotQuery{Language: "fr", SkipDefault: true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SkipDefault must not fall back to the default language, got %v", err)
	}
	if _, err := s.Slot(ctx, 3, "title", SlotQuery{MaxDepth: 0, AncestorsOnly: false}); err != nil {
		t.Errorf("unbounded depth must reach the parent: %v", err)
	}
	if _, err := s.Slot(ctx, 3, "footer", SlotQuery{MaxDepth: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("depth 1 must not reach the grandparent, got %v", err)
	}

	res, err := s.Resource(ctx, 1, "note.txt")
	if err != nil || string(res.Data) != "hello" || !strings.HasPrefix(res.MimeType, "text/plain") {
		t.Errorf("unexpected resource %+v (%v)", res, err)
	}

	lang, err := s.Language(ctx, "german")
	if err != nil || lang.ID != "de-DE" {
		t.Errorf("unexpected language %+v (%v)", lang, err)
	}
	langs, _ := s.Languages(ctx)
	if len(langs) != 2 || langs[0].ID != "en" || !langs[0].Default {
		t.Errorf("unexpected languages %+v", langs)
	}

	v, err := s.Version(ctx, 2)
	if err != nil || v.Name != "draft" {
		t.Errorf("unexpected version %+v (%v)", v, err)
	}

	if r := s.SetSlotValue(ctx, SlotWrite{AreaID: 3, Name: "title", Value: "Team page", Language: "en"}); !r.OK() {
		t.Fatalf("SetSlotValue failed: %v", r.Err())
	}
	slot, _ := s.Slot(ctx, 3, "title", SlotQuery{})
	if slot.Value != "Team page" {
		t.Errorf("expected written value, got %q", slot.Value)
	}
	if r := s.SetSlotValue(ctx, SlotWrite{AreaID: 77, Name: "x"}); r.Code != ResultNotFound {
		t.Errorf("expected not found result, got %v", r.Code)
	}

	if r := s.LockOutput(ctx, "page"); !r.OK() {
		t.Fatalf("LockOutput failed: %v", r.Err())
	}
	if r := s.LockOutput(ctx, "page"); r.Code != ResultLocked {
		t.Errorf("expected locked, got %v", r.Code)
	}
	if r := s.UnlockOutput(ctx, "page"); !r.OK() {
		t.Errorf("UnlockOutput failed: %v", r.Err())
	}
	if r := s.UnlockOutput(ctx, "page"); r.Code != ResultNotFound {
		t.Errorf("expected not found on second unlock, got %v", r.Code)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	loadTestSite(t, s)
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagx-test.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer s.Close()
	loadTestSite(t, s)
	exerciseStore(t, s)

	version, err := s.GetMetadata(context.Background(), "schema_version")
	if err != nil || version != SchemaVersion {
		t.Errorf("expected schema version %s, got %q (%v)", SchemaVersion, version, err)
	}
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagx-reopen.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	loadTestSite(t, s)
	s.Close()

	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	slot, err := s.Slot(context.Background(), 1, "title", SlotQuery{})
	if err != nil || slot.Value != "Welcome" {
		t.Errorf("data must persist, got %q (%v)", slot.Value, err)
	}
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	if _, err := OpenSQL(context.Background(), "oracle", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestRebind(t *testing.T) {
	got := dialects["postgres"].rebind("SELECT a FROM t WHERE x = ? AND y = ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Errorf("unexpected rebind %q", got)
	}
	if q := dialects["mysql"].rebind("x = ?"); q != "x = ?" {
		t.Errorf("mysql must keep ? placeholders, got %q", q)
	}
}

func TestUpsertClause(t *testing.T) {
	if got := dialects["mysql"].upsertClause("k", "v"); got != "ON DUPLICATE KEY UPDATE v = VALUES(v)" {
		t.Errorf("unexpected mysql upsert %q", got)
	}
	if got := dialects["sqlite"].upsertClause("k", "v"); got != "ON CONFLICT(k) DO UPDATE SET v = excluded.v" {
		t.Errorf("unexpected sqlite upsert %q", got)
	}
}

func TestCanonicalLanguage(t *testing.T) {
	tests := map[string]string{
		"en":     "en",
		"de-de":  "de-DE",
		" EN-us": "en-US",
		"":       "",
	}
	for in, want := range tests {
		if got := CanonicalLanguage(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestSiteErrors(t *testing.T) {
	inputs := []string{
		"areas:\n  - alias: x\n",
		"areas:\n  - id: 1\n  - id: 1\n",
		"areas:\n  - id: 1\n    slots:\n      a: [1, 2]\n",
		"bogus: true\n",
	}
	for _, in := range inputs {
		if err := LoadSite(context.Background(), strings.NewReader(in), ".", NewMemory()); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yaml")
	if err := os.WriteFile(path, []byte(testSite), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := NewWatcher(ctx, path, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()

	updated := strings.Replace(testSite, "title: Welcome", "title: Hello again", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		slot, err := w.Slot(ctx, 1, "title", SlotQuery{})
		if err == nil && slot.Value == "Hello again" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watcher did not pick up the change")
}

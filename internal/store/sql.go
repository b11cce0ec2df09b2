// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Current schema version
const SchemaVersion = "1"

// dialect captures the SQL differences between supported drivers.
type dialect struct {
	driver     string
	blobType   string
	textType   string
	dollarArgs bool   // $1 placeholders instead of ?
	upsert     string // format with conflict columns then update column
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:   "sqlite",
		blobType: "BLOB",
		textType: "TEXT",
		upsert:   "ON CONFLICT(%s) DO UPDATE SET %[2]s = excluded.%[2]s",
	},
	"postgres": {
		driver:     "postgres",
		blobType:   "BYTEA",
		textType:   "TEXT",
		dollarArgs: true,
		upsert:     "ON CONFLICT(%s) DO UPDATE SET %[2]s = excluded.%[2]s",
	},
	"mysql": {
		driver:   "mysql",
		blobType: "LONGBLOB",
		textType: "LONGTEXT",
		upsert:   "ON DUPLICATE KEY UPDATE %[2]s = VALUES(%[2]s)",
	},
}

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(q string) string {
	if !d.dollarArgs {
		return q
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteByte(q[i])
	}
	return sb.String()
}

func (d dialect) upsertClause(conflict, column string) string {
	return fmt.Sprintf(d.upsert, conflict, column)
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tagx_metadata (
			meta_key VARCHAR(191) PRIMARY KEY,
			meta_value ` + d.textType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS areas (
			id BIGINT PRIMARY KEY,
			alias VARCHAR(191) NOT NULL,
			parent_id BIGINT NOT NULL,
			name ` + d.textType + ` NOT NULL,
			ord INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS slots (
			area_id BIGINT NOT NULL,
			name VARCHAR(191) NOT NULL,
			language VARCHAR(35) NOT NULL,
			version BIGINT NOT NULL,
			value ` + d.textType + ` NOT NULL,
			PRIMARY KEY (area_id, name, language, version)
		)`,
		`CREATE TABLE IF NOT EXISTS resources (
			area_id BIGINT NOT NULL,
			name VARCHAR(191) NOT NULL,
			mime_type VARCHAR(191) NOT NULL,
			data ` + d.blobType + ` NOT NULL,
			PRIMARY KEY (area_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS versions (
			id BIGINT PRIMARY KEY,
			name VARCHAR(191) NOT NULL,
			is_default INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS languages (
			id VARCHAR(35) PRIMARY KEY,
			alias VARCHAR(191) NOT NULL,
			name VARCHAR(191) NOT NULL,
			is_default INTEGER NOT NULL,
			ord INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS output_locks (
			name VARCHAR(191) PRIMARY KEY
		)`,
	}
}

// SQL is a database-backed store for sqlite, mysql and postgres.
type SQL struct {
	mu sync.Mutex
	db *sql.DB
	d  dialect
}

// Drivers returns the supported driver names.
func Drivers() []string {
	return []string{"mysql", "postgres", "sqlite"}
}

// OpenSQL opens a store with the given driver ("sqlite", "mysql",
// "postgres") and data source name, creating the schema if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	s := &SQL{db: db, d: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite opens a sqlite store at path.
func NewSQLite(path string) (*SQL, error) {
	return OpenSQL(context.Background(), "sqlite", path)
}

func (s *SQL) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	version, err := s.getMetadataUnlocked(ctx, "schema_version")
	if err != nil {
		return err
	}
	switch version {
	case "":
		return s.setMetadataUnlocked(ctx, "schema_version", SchemaVersion)
	case SchemaVersion:
		return nil
	}
	return fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
}

func (s *SQL) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(q), args...)
}

func (s *SQL) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(q), args...)
}

func (s *SQL) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(q), args...)
}

// GetMetadata retrieves a metadata value by key.
func (s *SQL) GetMetadata(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(ctx, key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQL) getMetadataUnlocked(ctx context.Context, key string) (string, error) {
	var value string
	err := s.queryRow(ctx, "SELECT meta_value FROM tagx_metadata WHERE meta_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQL) setMetadataUnlocked(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, `INSERT INTO tagx_metadata (meta_key, meta_value) VALUES (?, ?) `+
		s.d.upsertClause("meta_key", "meta_value"), key, value)
	return err
}

func scanArea(row interface{ Scan(...any) error }) (Area, error) {
	var a Area
	err := row.Scan(&a.ID, &a.Alias, &a.ParentID, &a.Name, &a.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return Area{}, ErrNotFound
	}
	return a, err
}

// Area returns the area with the given id.
func (s *SQL) Area(ctx context.Context, id int64) (Area, error) {
	return scanArea(s.queryRow(ctx, "SELECT id, alias, parent_id, name, ord FROM areas WHERE id = ?", id))
}

// AreaByAlias returns the area with the given alias.
func (s *SQL) AreaByAlias(ctx context.Context, alias string) (Area, error) {
	return scanArea(s.queryRow(ctx, "SELECT id, alias, parent_id, name, ord FROM areas WHERE alias = ?", alias))
}

// Children returns the child areas of id.
func (s *SQL) Children(ctx context.Context, id int64) ([]Area, error) {
	rows, err := s.query(ctx, "SELECT id, alias, parent_id, name, ord FROM areas WHERE parent_id = ? AND id <> ? ORDER BY ord, id", id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Slot resolves a slot with language, version and ancestor fallback.
func (s *SQL) Slot(ctx context.Context, areaID int64, name string, q SlotQuery) (Slot, error) {
	return resolveSlot(ctx, s, areaID, name, q)
}

func (s *SQL) rawSlot(ctx context.Context, areaID int64, name, lang string, version int64) (string, bool, error) {
	var v string
	err := s.queryRow(ctx, "SELECT value FROM slots WHERE area_id = ? AND name = ? AND language = ? AND version = ?",
		areaID, name, lang, version).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Resource returns a named resource of an area.
func (s *SQL) Resource(ctx context.Context, areaID int64, name string) (Resource, error) {
	r := Resource{AreaID: areaID, Name: name}
	err := s.queryRow(ctx, "SELECT mime_type, data FROM resources WHERE area_id = ? AND name = ?", areaID, name).
		Scan(&r.MimeType, &r.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, ErrNotFound
	}
	return r, err
}

// Version returns a version by id.
func (s *SQL) Version(ctx context.Context, id int64) (Version, error) {
	v := Version{ID: id}
	var def int
	err := s.queryRow(ctx, "SELECT name, is_default FROM versions WHERE id = ?", id).Scan(&v.Name, &def)
	if errors.Is(err, sql.ErrNoRows) {
		if id == DefaultVersion {
			return Version{ID: DefaultVersion, Name: "default", Default: true}, nil
		}
		return Version{}, ErrNotFound
	}
	v.Default = def != 0
	return v, err
}

// Languages returns all languages in insertion order.
func (s *SQL) Languages(ctx context.Context) ([]Language, error) {
	rows, err := s.query(ctx, "SELECT id, alias, name, is_default FROM languages ORDER BY ord, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Language
	for rows.Next() {
		var l Language
		var def int
		if err := rows.Scan(&l.ID, &l.Alias, &l.Name, &def); err != nil {
			return nil, err
		}
		l.Default = def != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// Language finds a language by id or alias.
func (s *SQL) Language(ctx context.Context, idOrAlias string) (Language, error) {
	langs, err := s.Languages(ctx)
	if err != nil {
		return Language{}, err
	}
	id := CanonicalLanguage(idOrAlias)
	for _, l := range langs {
		if l.ID == id || strings.EqualFold(l.Alias, idOrAlias) {
			return l, nil
		}
	}
	return Language{}, ErrNotFound
}

// SetSlotValue writes a slot value. The area must exist.
func (s *SQL) SetSlotValue(ctx context.Context, w SlotWrite) Result {
	if _, err := s.Area(ctx, w.AreaID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Code: ResultNotFound, Message: "area does not exist"}
		}
		return failed(err)
	}
	if err := s.PutSlot(ctx, w); err != nil {
		return failed(err)
	}
	return Result{}
}

// LockOutput takes a named output lock.
func (s *SQL) LockOutput(ctx context.Context, name string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existing string
	err := s.queryRow(ctx, "SELECT name FROM output_locks WHERE name = ?", name).Scan(&existing)
	if err == nil {
		return Result{Code: ResultLocked, Message: name}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return failed(err)
	}
	if _, err := s.exec(ctx, "INSERT INTO output_locks (name) VALUES (?)", name); err != nil {
		return failed(err)
	}
	return Result{}
}

// UnlockOutput releases a named output lock.
func (s *SQL) UnlockOutput(ctx context.Context, name string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.exec(ctx, "DELETE FROM output_locks WHERE name = ?", name)
	if err != nil {
		return failed(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Result{Code: ResultNotFound, Message: name}
	}
	return Result{}
}

// Close closes the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}

// PutArea adds or replaces an area.
func (s *SQL) PutArea(ctx context.Context, a Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.exec(ctx, "DELETE FROM areas WHERE id = ?", a.ID); err != nil {
		return err
	}
	_, err := s.exec(ctx, "INSERT INTO areas (id, alias, parent_id, name, ord) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Alias, a.ParentID, a.Name, a.Order)
	return err
}

// PutSlot adds or replaces a slot value.
func (s *SQL) PutSlot(ctx context.Context, w SlotWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.exec(ctx, `INSERT INTO slots (area_id, name, language, version, value) VALUES (?, ?, ?, ?, ?) `+
		s.d.upsertClause("area_id, name, language, version", "value"),
		w.AreaID, w.Name, CanonicalLanguage(w.Language), w.Version, w.Value)
	return err
}

// PutResource adds or replaces a resource.
func (s *SQL) PutResource(ctx context.Context, r Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.exec(ctx, "DELETE FROM resources WHERE area_id = ? AND name = ?", r.AreaID, r.Name); err != nil {
		return err
	}
	_, err := s.exec(ctx, "INSERT INTO resources (area_id, name, mime_type, data) VALUES (?, ?, ?, ?)",
		r.AreaID, r.Name, r.MimeType, r.Data)
	return err
}

// PutVersion adds or replaces a version.
func (s *SQL) PutVersion(ctx context.Context, v Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.exec(ctx, "DELETE FROM versions WHERE id = ?", v.ID); err != nil {
		return err
	}
	_, err := s.exec(ctx, "INSERT INTO versions (id, name, is_default) VALUES (?, ?, ?)", v.ID, v.Name, boolInt(v.Default))
	return err
}

// PutLanguage adds or replaces a language, keeping its original position.
func (s *SQL) PutLanguage(ctx context.Context, l Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = CanonicalLanguage(l.ID)
	var ord int
	err := s.queryRow(ctx, "SELECT ord FROM languages WHERE id = ?", l.ID).Scan(&ord)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := s.queryRow(ctx, "SELECT COUNT(*) FROM languages").Scan(&ord); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err := s.exec(ctx, "DELETE FROM languages WHERE id = ?", l.ID); err != nil {
			return err
		}
	}
	_, err = s.exec(ctx, "INSERT INTO languages (id, alias, name, is_default, ord) VALUES (?, ?, ?, ?, ?)",
		l.ID, l.Alias, l.Name, boolInt(l.Default), ord)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

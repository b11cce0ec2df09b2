// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Site is the YAML description of a content tree.
type Site struct {
	Languages []SiteLanguage `yaml:"languages"`
	Versions  []SiteVersion  `yaml:"versions"`
	Areas     []SiteArea     `yaml:"areas"`
}

// SiteLanguage is a language entry of a site file.
type SiteLanguage struct {
	ID      string `yaml:"id"`
	Alias   string `yaml:"alias"`
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
}

// SiteVersion is a version entry of a site file.
type SiteVersion struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
}

// SiteArea is an area with its slots, resources and children. A slot is
// either a plain string for the default language or a map from language to
// value. Slot keys of the form "name@version" target a version.
type SiteArea struct {
	ID        int64                   `yaml:"id"`
	Alias     string                  `yaml:"alias"`
	Name      string                  `yaml:"name"`
	Slots     map[string]yaml.Node    `yaml:"slots"`
	Resources map[string]SiteResource `yaml:"resources"`
	Children  []SiteArea              `yaml:"children"`
}

// SiteResource is inline text or a file relative to the site file.
type SiteResource struct {
	Mime string `yaml:"mime"`
	Text string `yaml:"text"`
	File string `yaml:"file"`
}

// ParseSite decodes a site description.
func ParseSite(r io.Reader) (*Site, error) {
	var site Site
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&site); err != nil {
		if err == io.EOF {
			return &site, nil
		}
		return nil, fmt.Errorf("failed to parse site: %w", err)
	}
	return &site, nil
}

// LoadSite decodes a site description and writes it into dst. baseDir
// resolves resource files.
func LoadSite(ctx context.Context, r io.Reader, baseDir string, dst Loader) error {
	site, err := ParseSite(r)
	if err != nil {
		return err
	}
	return site.Load(ctx, baseDir, dst)
}

// LoadSiteFile loads the site file at path into dst.
func LoadSiteFile(ctx context.Context, path string, dst Loader) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read site: %w", err)
	}
	defer f.Close()
	return LoadSite(ctx, f, filepath.Dir(path), dst)
}

// Load writes the site into dst.
func (s *Site) Load(ctx context.Context, baseDir string, dst Loader) error {
	defLang := ""
	for _, l := range s.Languages {
		if l.ID == "" {
			return fmt.Errorf("site: language without id")
		}
		if l.Default && defLang == "" {
			defLang = CanonicalLanguage(l.ID)
		}
		if err := dst.PutLanguage(ctx, Language(l)); err != nil {
			return err
		}
	}
	if defLang == "" && len(s.Languages) > 0 {
		defLang = CanonicalLanguage(s.Languages[0].ID)
	}
	for _, v := range s.Versions {
		if err := dst.PutVersion(ctx, Version(v)); err != nil {
			return err
		}
	}
	seen := make(map[int64]bool)
	for i := range s.Areas {
		if err := loadArea(ctx, &s.Areas[i], 0, i, defLang, baseDir, dst, seen); err != nil {
			return err
		}
	}
	return nil
}

func loadArea(ctx context.Context, a *SiteArea, parent int64, order int, defLang, baseDir string, dst Loader, seen map[int64]bool) error {
	if a.ID <= 0 {
		return fmt.Errorf("site: area %q needs a positive id", a.Alias)
	}
	if seen[a.ID] {
		return fmt.Errorf("site: duplicate area id %d", a.ID)
	}
	seen[a.ID] = true
	if err := dst.PutArea(ctx, Area{ID: a.ID, Alias: a.Alias, ParentID: parent, Name: a.Name, Order: order}); err != nil {
		return err
	}
	for key, node := range a.Slots {
		name, version, err := splitSlotKey(key)
		if err != nil {
			return fmt.Errorf("site: area %d: %w", a.ID, err)
		}
		values, err := slotValues(&node, defLang)
		if err != nil {
			return fmt.Errorf("site: area %d slot %s: %w", a.ID, key, err)
		}
		for lang, v := range values {
			w := SlotWrite{AreaID: a.ID, Name: name, Language: lang, Version: version, Value: v}
			if err := dst.PutSlot(ctx, w); err != nil {
				return err
			}
		}
	}
	for name, res := range a.Resources {
		r := Resource{AreaID: a.ID, Name: name, MimeType: res.Mime}
		switch {
		case res.File != "":
			path := res.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("site: resource %s: %w", name, err)
			}
			r.Data = data
		default:
			r.Data = []byte(res.Text)
		}
		if r.MimeType == "" {
			r.MimeType = mime.TypeByExtension(filepath.Ext(name))
		}
		if r.MimeType == "" {
			r.MimeType = "application/octet-stream"
		}
		if err := dst.PutResource(ctx, r); err != nil {
			return err
		}
	}
	for i := range a.Children {
		if err := loadArea(ctx, &a.Children[i], a.ID, i, defLang, baseDir, dst, seen); err != nil {
			return err
		}
	}
	return nil
}

func splitSlotKey(key string) (string, int64, error) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '@' {
			var v int64
			if _, err := fmt.Sscanf(key[i+1:], "%d", &v); err != nil {
				return "", 0, fmt.Errorf("bad version in slot key %q", key)
			}
			return key[:i], v, nil
		}
	}
	return key, DefaultVersion, nil
}

func slotValues(node *yaml.Node, defLang string) (map[string]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return map[string]string{defLang: node.Value}, nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		out := make(map[string]string, len(m))
		for lang, v := range m {
			out[CanonicalLanguage(lang)] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("slot must be a string or a language map")
}

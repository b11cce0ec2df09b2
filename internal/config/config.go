// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config loads tagx runtime configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted for a config path.
const EnvVar = "TAGX_CONFIG"

// FileName is the config file looked for in the working directory.
const FileName = "tagx.yaml"

// Config is the full runtime configuration.
type Config struct {
	Timeout     time.Duration `yaml:"timeout"`      // per-request deadline (0 = none)
	ErrorFormat string        `yaml:"error_format"` // html or plain
	Strict      bool          `yaml:"strict"`       // abort the render on the first error
	Pack        bool          `yaml:"pack"`         // drop blank lines from final output
	NoStdlib    bool          `yaml:"no_stdlib"`

	Script  ScriptConfig  `yaml:"script"`
	Store   StoreConfig   `yaml:"store"`
	Site    SiteConfig    `yaml:"site"`
	Logging LoggingConfig `yaml:"logging"`
	Content ContentConfig `yaml:"content"`
	Output  OutputConfig  `yaml:"output"`

	// BaseDir is the directory of the loaded file; relative paths resolve
	// against it.
	BaseDir string `yaml:"-"`
}

// ScriptConfig sizes the embedded script engine pool.
type ScriptConfig struct {
	PoolSize       int           `yaml:"pool_size"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// StoreConfig selects the content store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite, mysql or postgres
	DSN    string `yaml:"dsn"`
}

// SiteConfig points at a YAML site file.
type SiteConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// ContentConfig is the initial content context of a request.
type ContentConfig struct {
	Language string `yaml:"language"`
	Area     string `yaml:"area"`
	Version  int    `yaml:"version"`
}

// OutputConfig controls the render writer.
type OutputConfig struct {
	Encoding string `yaml:"encoding"` // identity, gzip or zstd
	Level    string `yaml:"level"`    // fastest, default or best
	MinSize  int    `yaml:"min_size"`
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		ErrorFormat: "html",
		Pack:        true,
		Script: ScriptConfig{
			PoolSize:       4,
			AcquireTimeout: 5 * time.Second,
		},
		Store: StoreConfig{Driver: "memory"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Encoding: "identity",
			Level:    "default",
			MinSize:  1024,
		},
	}
}

// Load reads configuration with environment interpolation. An empty path
// searches the default locations; when nothing is found the defaults are
// returned.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	resolved, err := resolvePath(path, getenv)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		cfg := Defaults()
		return cfg, Validate(cfg)
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(interpolateEnv(data, getenv))
	if err != nil {
		return nil, err
	}

	cfg.BaseDir = filepath.Dir(abs)
	if cfg.Site.File != "" && !filepath.IsAbs(cfg.Site.File) {
		cfg.Site.File = filepath.Join(cfg.BaseDir, cfg.Site.File)
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN != "" && cfg.Store.DSN != ":memory:" &&
		!filepath.IsAbs(cfg.Store.DSN) && !strings.HasPrefix(cfg.Store.DSN, "file:") {
		cfg.Store.DSN = filepath.Join(cfg.BaseDir, cfg.Store.DSN)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath finds the config file to use.
// Search order: explicit path > TAGX_CONFIG env > ./tagx.yaml
func resolvePath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if envPath := getenv(EnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%s file not found: %s", EnvVar, envPath)
		}
		return envPath, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		v := getenv(string(parts[1]))
		if v == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			v = string(parts[2])
		}
		return []byte(v)
	})
}

// Validate reports every configuration error at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid timeout: %s (must not be negative)", cfg.Timeout))
	}
	switch cfg.ErrorFormat {
	case "html", "plain":
	default:
		errs = append(errs, fmt.Sprintf("invalid error_format: %s (must be html or plain)", cfg.ErrorFormat))
	}
	if cfg.Script.PoolSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid script.pool_size: %d (must be at least 1)", cfg.Script.PoolSize))
	}
	if cfg.Script.AcquireTimeout < 0 {
		errs = append(errs, "script.acquire_timeout must not be negative")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "sqlite", "mysql", "postgres":
		if cfg.Store.DSN == "" {
			errs = append(errs, fmt.Sprintf("store: driver %s requires a dsn", cfg.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid store.driver: %s (must be memory, sqlite, mysql, or postgres)", cfg.Store.Driver))
	}
	if cfg.Site.Watch && cfg.Site.File == "" {
		errs = append(errs, "site.watch requires site.file")
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err.Error())
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}
	switch cfg.Output.Encoding {
	case "", "identity", "none", "gzip", "zstd":
	default:
		errs = append(errs, fmt.Sprintf("invalid output.encoding: %s", cfg.Output.Encoding))
	}
	switch cfg.Output.Level {
	case "", "fastest", "default", "best":
	default:
		errs = append(errs, fmt.Sprintf("invalid output.level: %s (must be fastest, default, or best)", cfg.Output.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
}

// Logger builds the slog logger described by the logging section.
func (c *Config) Logger(w *os.File) *slog.Logger {
	level, err := ParseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

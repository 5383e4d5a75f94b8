// Package config loads cache, maintenance and logging settings from YAML or
// JSON, from a file or from raw bytes (e.g. a mounted ConfigMap).
//
//	cache:
//	  evict_fraction: 0.25
//	  quiet_writes: 4
//	  initial_capacity: 1024
//	  ghost_entries: 4096
//	maintenance:
//	  schedule: "@every 30s"
//	  timeout: 1m
//	log:
//	  level: info
//	  file: /var/log/collectbench.log
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/recyclecache/cache"
	"github.com/IvanBrykalov/recyclecache/maintenance"
)

// Format is a configuration encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported format")
	ErrInvalid           = errors.New("config: invalid value")
)

// Config is the full settings tree.
type Config struct {
	Cache       Cache       `koanf:"cache"`
	Maintenance Maintenance `koanf:"maintenance"`
	Log         Log         `koanf:"log"`
}

// Cache mirrors the tunable cache.Options fields.
type Cache struct {
	EvictFraction   float64 `koanf:"evict_fraction"`
	QuietWrites     int     `koanf:"quiet_writes"`
	InitialCapacity int     `koanf:"initial_capacity"`
	GhostEntries    int     `koanf:"ghost_entries"`
}

type Maintenance struct {
	Schedule string        `koanf:"schedule"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Log selects the level and, optionally, a rotated log file.
type Log struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// Default returns the settings used for keys absent from the input.
func Default() Config {
	return Config{
		Cache: Cache{
			EvictFraction:   cache.DefaultEvictFraction,
			QuietWrites:     cache.DefaultQuietWrites,
			InitialCapacity: cache.DefaultInitialCapacity,
		},
		Maintenance: Maintenance{
			Schedule: maintenance.DefaultSchedule,
			Timeout:  maintenance.DefaultTimeout,
		},
		Log: Log{Level: "info", MaxSizeMB: 100, MaxBackups: 3},
	}
}

// Load reads path; the format follows the extension (.yaml, .yml, .json).
func Load(path string) (Config, error) {
	format, err := detectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadBytes(data, format)
}

// LoadBytes parses data in the given format over Default().
// Empty data yields the defaults.
func LoadBytes(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Cache.EvictFraction <= 0 || c.Cache.EvictFraction > 1:
		return fmt.Errorf("%w: cache.evict_fraction %v not in (0, 1]", ErrInvalid, c.Cache.EvictFraction)
	case c.Cache.GhostEntries < 0:
		return fmt.Errorf("%w: cache.ghost_entries %d", ErrInvalid, c.Cache.GhostEntries)
	case c.Maintenance.Timeout <= 0:
		return fmt.Errorf("%w: maintenance.timeout %v", ErrInvalid, c.Maintenance.Timeout)
	}
	if _, err := c.Log.ParseLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	return nil
}

// ApplyCache copies the cache settings into opt, leaving hooks untouched.
func ApplyCache[K comparable, V cache.Resource](c Cache, opt *cache.Options[K, V]) {
	opt.EvictFraction = c.EvictFraction
	opt.QuietWrites = c.QuietWrites
	opt.InitialCapacity = c.InitialCapacity
	opt.GhostEntries = c.GhostEntries
}

// Options converts the maintenance settings.
func (m Maintenance) Options(log logrus.FieldLogger) maintenance.Options {
	return maintenance.Options{Schedule: m.Schedule, Timeout: m.Timeout, Logger: log}
}

// ParseLevel returns the logrus level.
func (l Log) ParseLevel() (logrus.Level, error) {
	return logrus.ParseLevel(l.Level)
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
}

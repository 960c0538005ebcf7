// Package config loads copytree configuration from defaults, the project's
// .copytree.toml, and COPYTREE_ environment variables, in that order of
// precedence (later wins). It exposes the small typed-getter surface the
// pipeline consumes for policy decisions.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/logging"
)

// Provider is the read surface the pipeline stages consume. Values outside
// the loaded configuration fall back to the caller's default.
type Provider interface {
	GetString(key, def string) string
	GetInt(key string, def int) int
	GetInt64(key string, def int64) int64
	GetFloat(key string, def float64) float64
	GetBool(key string, def bool) bool
	GetStrings(key string) []string
}

// Config is the koanf-backed Provider implementation
type Config struct {
	k *koanf.Koanf
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"binary.policy":                 "placeholder",
		"binary.sample_bytes":           8192,
		"binary.nonprintable_threshold": 0.30,
		"discovery.ignore":              []string{},
		"loading.max_file_size":         1 << 20,
		"loading.structure_only":        []string{},
		"loading.retries":               3,
		"loading.retry_delay_ms":        50,
		"transform.disabled":            []string{},
		"transform.truncate_bytes":      0,
		"transform.no_cache":            false,
		"limits.discovery":              8,
		"limits.glob":                   16,
		"limits.io":                     12,
		"limits.transform":              4,
	}
}

// Load builds a Config for the given scan root. The root's .copytree.toml
// (or copytree.toml) is optional; a missing file is not an error.
func Load(root string) (*Config, error) {
	logger := logging.GetLogger("config")

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading default configuration")
	}

	for _, filename := range []string{".copytree.toml", "copytree.toml"} {
		path := filepath.Join(root, filename)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "parsing %s", path)
		}
		logger.Debug().Str("path", path).Msg("Loaded project configuration")
		break
	}

	if err := k.Load(env.Provider("COPYTREE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "COPYTREE_")), "_", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading environment overrides")
	}

	return &Config{k: k}, nil
}

// FromMap builds a Config from an in-memory map, on top of defaults.
// Used by tests and programmatic callers.
func FromMap(values map[string]interface{}) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading default configuration")
	}
	if len(values) > 0 {
		if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading configuration map")
		}
	}
	return &Config{k: k}, nil
}

// Default returns a Config holding only the built-in defaults
func Default() *Config {
	c, _ := FromMap(nil)
	return c
}

func (c *Config) GetString(key, def string) string {
	if !c.k.Exists(key) {
		return def
	}
	return c.k.String(key)
}

func (c *Config) GetInt(key string, def int) int {
	if !c.k.Exists(key) {
		return def
	}
	return c.k.Int(key)
}

func (c *Config) GetInt64(key string, def int64) int64 {
	if !c.k.Exists(key) {
		return def
	}
	return c.k.Int64(key)
}

func (c *Config) GetFloat(key string, def float64) float64 {
	if !c.k.Exists(key) {
		return def
	}
	return c.k.Float64(key)
}

func (c *Config) GetBool(key string, def bool) bool {
	if !c.k.Exists(key) {
		return def
	}
	return c.k.Bool(key)
}

func (c *Config) GetStrings(key string) []string {
	return c.k.Strings(key)
}

// Limits returns the configured per-domain concurrency budgets
func (c *Config) Limits() map[string]int {
	limits := make(map[string]int)
	for key, def := range defaults() {
		if !strings.HasPrefix(key, "limits.") {
			continue
		}
		domain := strings.TrimPrefix(key, "limits.")
		limits[domain] = c.GetInt(key, def.(int))
	}
	return limits
}

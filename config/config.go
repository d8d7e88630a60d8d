// Package config loads connection settings and opens a [sqlexec.DataSource]
// for one of the supported drivers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
)

// EnvPrefix is the prefix of environment variables read by [Load]
const EnvPrefix = "SQLEXEC_"

var ErrMissingDSN = errors.New("config: dsn is required")

// Config holds the settings needed to open a data source
type Config struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	LogLevel        string        `koanf:"log_level"`
	Debug           bool          `koanf:"debug"`
}

func defaults() map[string]any {
	return map[string]any{
		"driver":         "sqlite",
		"max_idle_conns": 2,
		"log_level":      "info",
		"debug":          false,
	}
}

// Load reads the configuration in increasing order of precedence from:
//
//  1. built-in defaults
//  2. the YAML file at path, if path is not empty
//  3. environment variables prefixed with [EnvPrefix], e.g. SQLEXEC_DSN
//  4. overrides, keyed like the YAML file
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %q: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the config names a known driver and a DSN
func (c Config) Validate() error {
	if _, ok := drivers[c.Driver]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}

	if c.DSN == "" {
		return ErrMissingDSN
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// Logger returns a logrus logger at the configured level
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	return logger, nil
}

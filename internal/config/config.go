// Package config loads the process configuration from defaults, an
// optional YAML file, and PLANLOOP_-prefixed environment variables, in
// increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/planloop/planloop/internal/store"
)

const envPrefix = "PLANLOOP_"

// Config is the full process configuration.
type Config struct {
	Store   store.Config  `koanf:"store"`
	Refine  RefineConfig  `koanf:"refine"`
	Logging LoggingConfig `koanf:"logging"`
}

// RefineConfig holds the refinement-loop settings shared by every
// session the process starts.
type RefineConfig struct {
	// RoundCap bounds oracle invocations per session.
	RoundCap int `koanf:"round_cap"`
	// EvidenceParallelism bounds concurrent evidence fetches per round.
	EvidenceParallelism int `koanf:"evidence_parallelism"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `koanf:"level"`
	// Suppress lists regular expressions; log entries whose message
	// matches any of them are dropped.
	Suppress []string `koanf:"suppress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: store.DefaultConfig(),
		Refine: RefineConfig{
			RoundCap:            3,
			EvidenceParallelism: 4,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration. A missing file at path is not an
// error; an unreadable or malformed one is. When path is empty only
// defaults and environment variables apply.
//
// Environment variables map section and field through underscores:
//
//	PLANLOOP_STORE_DATA_DIR   -> store.data_dir
//	PLANLOOP_REFINE_ROUND_CAP -> refine.round_cap
//	PLANLOOP_LOGGING_LEVEL    -> logging.level
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults + env
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps PLANLOOP_SECTION_FIELD_NAME to section.field_name: the
// first underscore after the prefix separates the section, the rest
// stay in the field name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// Validate rejects configurations the process cannot run with.
func (c Config) Validate() error {
	if c.Store.DataDir == "" {
		return fmt.Errorf("config: store.data_dir must be set")
	}
	if c.Store.MaxOpenConns < 1 {
		return fmt.Errorf("config: store.max_open_conns must be positive (got %d)", c.Store.MaxOpenConns)
	}
	if c.Store.MaxSearchResults < 1 {
		return fmt.Errorf("config: store.max_search_results must be positive (got %d)", c.Store.MaxSearchResults)
	}
	if c.Refine.RoundCap < 1 {
		return fmt.Errorf("config: refine.round_cap must be positive (got %d)", c.Refine.RoundCap)
	}
	if c.Refine.EvidenceParallelism < 1 {
		return fmt.Errorf("config: refine.evidence_parallelism must be positive (got %d)", c.Refine.EvidenceParallelism)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q: must be one of: debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/planloop/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Refine.RoundCap)
	assert.Equal(t, 4, cfg.Refine.EvidenceParallelism)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Store.DataDir)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  data_dir: /var/lib/planloop
refine:
  round_cap: 7
logging:
  level: debug
  suppress:
    - "connection reset"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/planloop", cfg.Store.DataDir)
	assert.Equal(t, 7, cfg.Refine.RoundCap)
	assert.Equal(t, 4, cfg.Refine.EvidenceParallelism) // untouched default
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"connection reset"}, cfg.Logging.Suppress)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
refine:
  round_cap: 7
`)
	t.Setenv("PLANLOOP_REFINE_ROUND_CAP", "2")
	t.Setenv("PLANLOOP_STORE_DATA_DIR", "/tmp/planloop-env")
	t.Setenv("PLANLOOP_LOGGING_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Refine.RoundCap)
	assert.Equal(t, "/tmp/planloop-env", cfg.Store.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not: a: mapping")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	base := config.Default()

	cases := map[string]func(*config.Config){
		"empty data dir":       func(c *config.Config) { c.Store.DataDir = "" },
		"zero round cap":       func(c *config.Config) { c.Refine.RoundCap = 0 },
		"negative parallelism": func(c *config.Config) { c.Refine.EvidenceParallelism = -1 },
		"unknown log level":    func(c *config.Config) { c.Logging.Level = "verbose" },
		"zero open conns":      func(c *config.Config) { c.Store.MaxOpenConns = 0 },
		"zero search results":  func(c *config.Config) { c.Store.MaxSearchResults = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

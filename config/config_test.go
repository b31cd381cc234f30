package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablemesh/converse/memory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "converse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesLayerOverDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: anthropic
  name: claude-3-5-haiku-latest
  api_key_env: ANTHROPIC_API_KEY
scheduling:
  response_delay: 2s
  turn_stagger: 1s
  radiant_enabled: false
memory:
  window: 10
world:
  default_location: Harbor
  general:
    - The kingdom is at war.
  locations:
    Harbor:
      - Ships arrive daily.
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Model.Name)
	assert.Equal(t, 2*time.Second, cfg.Scheduling.ResponseDelay.Std())
	assert.Equal(t, time.Second, cfg.Scheduling.TurnStagger.Std())
	assert.Equal(t, 10, cfg.Memory.Window)
	assert.Equal(t, "Harbor", cfg.World.DefaultLocation)
	assert.Equal(t, []string{"The kingdom is at war."}, cfg.World.General)

	// untouched sections keep their defaults
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, "info", cfg.Logging.Level)

	ec := cfg.EngineConfig()
	assert.Equal(t, 2*time.Second, ec.ResponseDelay)
	assert.Equal(t, time.Second, ec.TurnStagger)
	assert.Equal(t, 10, ec.MemoryWindow)
	assert.Equal(t, "Harbor", ec.DefaultLocation)
	assert.False(t, ec.RadiantEnabled)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "scheduling:\n  response_delay: soon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidYaml(t *testing.T) {
	path := writeConfig(t, "model: [unclosed\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults pass", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Model.Provider = "bard" }, "unknown model provider"},
		{"negative delay", func(c *Config) { c.Scheduling.ThinkDelay = Duration(-time.Second) }, "non-negative"},
		{"zero pool", func(c *Config) { c.Scheduling.MaxConcurrentGenerations = 0 }, "at least 1"},
		{"negative window", func(c *Config) { c.Memory.Window = -1 }, "non-negative"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "unknown log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewMemoryStore(t *testing.T) {
	cfg := Default()
	store, err := cfg.NewMemoryStore()
	require.NoError(t, err)
	_, ok := store.(*memory.InMemoryStore)
	assert.True(t, ok, "no dir configured, expected in-process store")

	cfg.Memory.Dir = t.TempDir()
	store, err = cfg.NewMemoryStore()
	require.NoError(t, err)
	_, ok = store.(*memory.FileStore)
	assert.True(t, ok, "dir configured, expected file-backed store")
}

func TestNewWorldContext(t *testing.T) {
	cfg := Default()
	cfg.World.General = []string{"A quiet coastal village."}
	cfg.World.Locations = map[string][]string{"Harbor": {"Gulls everywhere."}}

	wc := cfg.NewWorldContext()
	assert.Equal(t, []string{"A quiet coastal village."}, wc.GeneralContext())
	assert.Equal(t, []string{"Gulls everywhere."}, wc.LocationContext("Harbor"))
	assert.Empty(t, wc.LocationContext("Forest"))
}

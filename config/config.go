// Package config loads engine and provider settings from a yaml file,
// layering file values over compiled defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fablemesh/converse/engine"
)

// Provider names accepted by the Model section.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the on-disk configuration surface.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Memory     MemoryConfig     `yaml:"memory"`
	World      WorldConfig      `yaml:"world"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ModelConfig selects and tunes the completion provider.
type ModelConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `yaml:"provider"`
	// Name is the provider-specific model identifier. Empty uses the
	// provider package's default.
	Name string `yaml:"name"`
	// APIKeyEnv names the environment variable holding the API key. The key
	// itself never lives in the file.
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Duration wraps time.Duration so yaml values like "5s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SchedulingConfig tunes the turn scheduler.
type SchedulingConfig struct {
	ResponseDelay            Duration `yaml:"response_delay"`
	TurnStagger              Duration `yaml:"turn_stagger"`
	ThinkDelay               Duration `yaml:"think_delay"`
	MaxConcurrentGenerations int      `yaml:"max_concurrent_generations"`
	RadiantEnabled           *bool    `yaml:"radiant_enabled"`
}

// MemoryConfig tunes agent memory.
type MemoryConfig struct {
	// Dir enables the file-backed store when set; empty keeps memory
	// in-process.
	Dir        string `yaml:"dir"`
	Window     int    `yaml:"window"`
	MaxHistory int    `yaml:"max_history"`
}

// WorldConfig carries static world context.
type WorldConfig struct {
	DefaultLocation string              `yaml:"default_location"`
	General         []string            `yaml:"general"`
	Locations       map[string][]string `yaml:"locations"`
}

// LoggingConfig tunes the slog-backed logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	radiant := engine.DefaultConfig.RadiantEnabled
	return Config{
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Scheduling: SchedulingConfig{
			ResponseDelay:            Duration(engine.DefaultConfig.ResponseDelay),
			TurnStagger:              Duration(engine.DefaultConfig.TurnStagger),
			ThinkDelay:               Duration(engine.DefaultConfig.ThinkDelay),
			MaxConcurrentGenerations: engine.DefaultConfig.MaxConcurrentGenerations,
			RadiantEnabled:           &radiant,
		},
		Memory: MemoryConfig{
			Window:     engine.DefaultConfig.MemoryWindow,
			MaxHistory: 200,
		},
		World: WorldConfig{
			DefaultLocation: engine.DefaultConfig.DefaultLocation,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a yaml config file and layers it over Default. A missing path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Scheduling.ResponseDelay < 0 || c.Scheduling.TurnStagger < 0 || c.Scheduling.ThinkDelay < 0 {
		return fmt.Errorf("scheduling delays must be non-negative")
	}
	if c.Scheduling.MaxConcurrentGenerations < 1 {
		return fmt.Errorf("max_concurrent_generations must be at least 1")
	}
	if c.Memory.Window < 0 {
		return fmt.Errorf("memory window must be non-negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// EngineConfig maps the file values onto the engine's tuning struct.
func (c Config) EngineConfig() engine.Config {
	out := engine.DefaultConfig
	if c.Scheduling.ResponseDelay > 0 {
		out.ResponseDelay = c.Scheduling.ResponseDelay.Std()
	}
	if c.Scheduling.TurnStagger > 0 {
		out.TurnStagger = c.Scheduling.TurnStagger.Std()
	}
	if c.Scheduling.ThinkDelay > 0 {
		out.ThinkDelay = c.Scheduling.ThinkDelay.Std()
	}
	if c.Scheduling.MaxConcurrentGenerations > 0 {
		out.MaxConcurrentGenerations = c.Scheduling.MaxConcurrentGenerations
	}
	if c.Scheduling.RadiantEnabled != nil {
		out.RadiantEnabled = *c.Scheduling.RadiantEnabled
	}
	if c.Memory.Window > 0 {
		out.MemoryWindow = c.Memory.Window
	}
	if c.World.DefaultLocation != "" {
		out.DefaultLocation = c.World.DefaultLocation
	}
	return out
}

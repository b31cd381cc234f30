package config

import (
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/logging"
	"github.com/fablemesh/converse/memory"
	"github.com/fablemesh/converse/model"
	"github.com/fablemesh/converse/model/anthropic"
	"github.com/fablemesh/converse/model/openai"
)

// NewCompleter constructs the completion service selected by the Model
// section. The API key is read from the environment variable named by
// api_key_env; for OpenAI an empty APIKeyEnv defers to the SDK's own
// environment handling.
func (c Config) NewCompleter() (model.Completer, error) {
	switch c.Model.Provider {
	case ProviderOpenAI:
		return openai.NewCompleter(func(o *openai.Options) {
			if c.Model.Name != "" {
				o.Model = c.Model.Name
			}
			if c.Model.Temperature > 0 {
				o.Temperature = c.Model.Temperature
			}
			if c.Model.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(c.Model.MaxTokens)
			}
		}), nil
	case ProviderAnthropic:
		return anthropic.NewCompleter(func(o *anthropic.Options) {
			if c.Model.Name != "" {
				o.Model = anthropicsdk.Model(c.Model.Name)
			}
			if c.Model.Temperature > 0 {
				o.Temperature = c.Model.Temperature
			}
			if c.Model.MaxTokens > 0 {
				o.MaxTokens = int64(c.Model.MaxTokens)
			}
			if c.Model.APIKeyEnv != "" {
				o.APIKey = os.Getenv(c.Model.APIKeyEnv)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
}

// NewMemoryStore constructs the agent memory store selected by the Memory
// section: file-backed when a directory is configured, in-process otherwise.
func (c Config) NewMemoryStore() (core.MemoryStore, error) {
	if c.Memory.Dir == "" {
		return memory.NewInMemoryStore(), nil
	}
	return memory.NewFileStore(c.Memory.Dir, func(o *memory.FileStoreOptions) {
		if c.Memory.MaxHistory > 0 {
			o.MaxHistory = c.Memory.MaxHistory
		}
	})
}

// NewLogger constructs the slog-backed logger selected by the Logging
// section, writing to stderr.
func (c Config) NewLogger() logging.Logger {
	level := logging.LogLevelInfo
	switch c.Logging.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, c.Logging.Format, os.Stderr)
}

// NewWorldContext builds the static world context from the World section.
func (c Config) NewWorldContext() core.WorldContext {
	return core.StaticWorldContext{General: c.World.General, Locations: c.World.Locations}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arwen/internal/ipc"

	"gopkg.in/yaml.v3"
)

// DefaultEngineCommand launches the engine from its dune project.
const DefaultEngineCommand = "dune exec stub --profile release"

// Config holds all arwen configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Engine subprocess
	Engine EngineConfig `yaml:"engine"`

	// Run history database
	Store StoreConfig `yaml:"store"`

	// Annotation file watcher
	Watch WatchConfig `yaml:"watch"`

	// Pre-send validation
	Check CheckConfig `yaml:"check"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures how the engine is launched and talked to.
type EngineConfig struct {
	Command       string   `yaml:"command"`
	Dir           string   `yaml:"dir"`            // working directory of the engine
	Env           []string `yaml:"env,omitempty"`  // extra KEY=VALUE entries
	ShutdownGrace string   `yaml:"shutdown_grace"` // wait before kill on shutdown
	Timeout       string   `yaml:"timeout"`        // per-Setup receive deadline
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures the annotation file watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// CheckConfig configures validation before a Setup is sent.
type CheckConfig struct {
	Enabled bool `yaml:"enabled"`
	// Strict turns warnings into failures.
	Strict bool `yaml:"strict"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "arwen",
		Version: "0.3.0",

		Engine: EngineConfig{
			Command:       DefaultEngineCommand,
			Dir:           ".",
			ShutdownGrace: "1s",
			Timeout:       "10m",
		},

		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(".arwen", "runs.db"),
		},

		Watch: WatchConfig{
			Debounce: "300ms",
		},

		Check: CheckConfig{
			Enabled: true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if cmd := os.Getenv("ARWEN_ENGINE_CMD"); cmd != "" {
		c.Engine.Command = cmd
	}
	if dir := os.Getenv("ARWEN_ENGINE_DIR"); dir != "" {
		c.Engine.Dir = dir
	}
	if path := os.Getenv("ARWEN_STORE"); path != "" {
		c.Store.Path = path
		c.Store.Enabled = true
	}
	switch os.Getenv("ARWEN_DEBUG") {
	case "1", "true", "yes":
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetShutdownGrace returns the engine shutdown grace as a duration.
func (c *Config) GetShutdownGrace() time.Duration {
	return duration(c.Engine.ShutdownGrace, ipc.DefaultGrace)
}

// GetEngineTimeout returns the per-Setup receive deadline.
func (c *Config) GetEngineTimeout() time.Duration {
	return duration(c.Engine.Timeout, 10*time.Minute)
}

// GetDebounce returns the watcher debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	return duration(c.Watch.Debounce, 300*time.Millisecond)
}

// EngineCommand builds the launch description for the engine.
func (c *Config) EngineCommand() ipc.Command {
	cmd := ipc.ParseCommand(c.Engine.Command)
	cmd.Dir = c.Engine.Dir
	cmd.Env = append([]string(nil), c.Engine.Env...)
	cmd.Grace = c.GetShutdownGrace()
	return cmd
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if ipc.ParseCommand(c.Engine.Command).Path == "" {
		return fmt.Errorf("engine command not configured (set engine.command or ARWEN_ENGINE_CMD)")
	}
	for name, v := range map[string]string{
		"engine.shutdown_grace": c.Engine.ShutdownGrace,
		"engine.timeout":        c.Engine.Timeout,
		"watch.debounce":        c.Watch.Debounce,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s %q: negative", name, v)
		}
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store enabled without a path")
	}
	return c.Logging.Validate()
}

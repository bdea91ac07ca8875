package config

import (
	"fmt"

	"arwen/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // json, text
	Dir        string          `yaml:"dir"`                  // one file per category; empty means stderr
	DebugMode  bool            `yaml:"debug_mode"`           // Master toggle - false = no category logging
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false.
// Returns true if debug_mode is true and category is enabled (or not specified).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Validate checks level and format.
func (c *LoggingConfig) Validate() error {
	if c.Level != "" {
		ok := false
		for _, l := range ValidLevels {
			if c.Level == l {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("invalid log level: %s (valid: %v)", c.Level, ValidLevels)
		}
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Format)
	}
	return nil
}

// ToLogging converts c into the logging package's configuration.
func (c *LoggingConfig) ToLogging() logging.Config {
	cats := make(map[string]bool, len(c.Categories))
	for k, v := range c.Categories {
		cats[k] = v
	}
	return logging.Config{
		DebugMode:  c.DebugMode,
		Categories: cats,
		Level:      c.Level,
		JSONFormat: c.Format == "json",
		Dir:        c.Dir,
	}
}

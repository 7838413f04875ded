package config

import (
	"fmt"

	"github.com/kilianp07/parcelmas/core/factory"
)

// LoggingConfig defines the log level and the auction log storage and
// rotation.
type LoggingConfig struct {
	// Level overrides LOG_LEVEL for every component logger.
	Level string `json:"level"`
	// Backend selects the auction log store type: "jsonl", "sqlite" or
	// "postgres". Empty disables the auction log.
	Backend string `json:"backend"`
	// Path is the file location of the jsonl and sqlite stores.
	Path string `json:"path"`
	// DSN is the connection string of the postgres store.
	DSN string `json:"dsn"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Path != "" {
		return
	}
	switch c.Backend {
	case "jsonl":
		c.Path = "auctions.jsonl"
	case "sqlite":
		c.Path = "auctions.db"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %s", c.Level)
	}
	switch c.Backend {
	case "":
		return nil
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// Store describes the auction log store for the store factory.
func (c LoggingConfig) Store() factory.ModuleConfig {
	if c.Backend == "" {
		return factory.ModuleConfig{}
	}
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{
		"path":         c.Path,
		"dsn":          c.DSN,
		"max_size_mb":  c.MaxSizeMB,
		"max_backups":  c.MaxBackups,
		"max_age_days": c.MaxAgeDays,
	}}
}

// Package config loads the application configuration from a YAML or JSON
// file with optional K_ environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/parcelmas/core/agent"
	"github.com/kilianp07/parcelmas/core/auction"
	"github.com/kilianp07/parcelmas/core/factory"
	"github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/infra/monitoring"
	"github.com/kilianp07/parcelmas/infra/mqtt"
)

type Config struct {
	Simulation SimulationConfig     `json:"simulation"`
	Agent      agent.Config         `json:"agent"`
	Planner    factory.ModuleConfig `json:"planner"`
	Bidder     factory.ModuleConfig `json:"bidder"`
	Solver     factory.ModuleConfig `json:"solver"`
	Auction    auction.Config       `json:"auction"`
	Metrics    metrics.Config       `json:"metrics"`
	MQTT       mqtt.Config          `json:"mqtt"`
	Logging    LoggingConfig        `json:"logging"`
	API        APIConfig            `json:"api"`
	Monitoring monitoring.Config    `json:"monitoring"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	if c.Planner.Type == "" {
		c.Planner.Type = "solver"
	}
	if c.Bidder.Type == "" {
		c.Bidder.Type = "insertion"
	}
	if c.Solver.Type == "" {
		c.Solver.Type = "insertion"
	}
	c.Auction.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if c.Auction.Epsilon < 0 {
		return fmt.Errorf("auction epsilon must not be negative")
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

package config

import (
	"fmt"

	"github.com/kilianp07/parcelmas/simulator"
)

// GenerateConfig describes the scenario generated when no scenario file is
// given.
type GenerateConfig struct {
	Seed     int64   `json:"seed"`
	Vehicles int     `json:"vehicles"`
	Tasks    int     `json:"tasks"`
	Area     float64 `json:"area"`
	Speed    float64 `json:"speed"`
	Capacity float64 `json:"capacity"`
}

// SimulationConfig configures the tick loop and the scenario.
type SimulationConfig struct {
	simulator.Config `json:",squash"`
	// Scenario is the path of a YAML scenario file.
	Scenario string         `json:"scenario"`
	Generate GenerateConfig `json:"generate"`
}

// SetDefaults fills the tick loop settings and the generated fleet size.
func (c *SimulationConfig) SetDefaults() {
	c.Config.SetDefaults()
	if c.Scenario == "" && c.Generate.Tasks == 0 {
		c.Generate.Tasks = 20
	}
}

// Validate checks the tick loop and the generation parameters.
func (c SimulationConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Generate.Vehicles < 0 || c.Generate.Tasks < 0 {
		return fmt.Errorf("simulation.generate counts must not be negative")
	}
	return nil
}

// GenerateParams converts the generation section for simulator.Generate.
func (c SimulationConfig) GenerateParams() simulator.GenerateConfig {
	return simulator.GenerateConfig{
		Seed:     c.Generate.Seed,
		Vehicles: c.Generate.Vehicles,
		Tasks:    c.Generate.Tasks,
		Area:     c.Generate.Area,
		Speed:    c.Generate.Speed,
		Capacity: c.Generate.Capacity,
	}
}

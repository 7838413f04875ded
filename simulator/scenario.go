package simulator

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/parcelmas/core/model"
)

// Position is a point in a scenario file.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (p Position) point() model.Point { return model.Point{X: p.X, Y: p.Y} }

// Window is a time window relative to the scenario start. A zero Close leaves
// the window open ended.
type Window struct {
	Open  time.Duration `yaml:"open,omitempty"`
	Close time.Duration `yaml:"close,omitempty"`
}

func (w Window) at(start time.Time) model.TimeWindow {
	tw := model.TimeWindow{Start: start.Add(w.Open)}
	if w.Close > 0 {
		tw.End = start.Add(w.Close)
	}
	return tw
}

// VehicleSpec describes one vehicle of a scenario.
type VehicleSpec struct {
	ID       string   `yaml:"id"`
	Position Position `yaml:"position"`
	Speed    float64  `yaml:"speed"`
	Capacity float64  `yaml:"capacity"`
}

// TaskSpec describes one transport request of a scenario.
type TaskSpec struct {
	ID              string        `yaml:"id"`
	At              time.Duration `yaml:"at"`
	Pickup          Position      `yaml:"pickup"`
	Delivery        Position      `yaml:"delivery"`
	PickupWindow    Window        `yaml:"pickup_window,omitempty"`
	DeliveryWindow  Window        `yaml:"delivery_window,omitempty"`
	PickupService   time.Duration `yaml:"pickup_service,omitempty"`
	DeliveryService time.Duration `yaml:"delivery_service,omitempty"`
	Capacity        float64       `yaml:"capacity,omitempty"`
}

// Scenario is a fleet and the requests announced to it over time.
type Scenario struct {
	Name     string        `yaml:"name"`
	Seed     int64         `yaml:"seed"`
	Start    time.Time     `yaml:"start"`
	Vehicles []VehicleSpec `yaml:"vehicles"`
	Tasks    []TaskSpec    `yaml:"tasks"`
}

// Validate checks identifiers and physical parameters.
func (s *Scenario) Validate() error {
	if len(s.Vehicles) == 0 {
		return fmt.Errorf("scenario %q has no vehicles", s.Name)
	}
	ids := make(map[string]bool)
	for _, v := range s.Vehicles {
		if v.ID == "" || ids[v.ID] {
			return fmt.Errorf("scenario %q: vehicle id %q missing or duplicated", s.Name, v.ID)
		}
		ids[v.ID] = true
		if v.Speed <= 0 || v.Capacity <= 0 {
			return fmt.Errorf("scenario %q: vehicle %s needs a positive speed and capacity", s.Name, v.ID)
		}
	}
	ids = make(map[string]bool)
	for _, t := range s.Tasks {
		if t.ID == "" || ids[t.ID] {
			return fmt.Errorf("scenario %q: task id %q missing or duplicated", s.Name, t.ID)
		}
		ids[t.ID] = true
		if t.At < 0 {
			return fmt.Errorf("scenario %q: task %s announced before the start", s.Name, t.ID)
		}
	}
	return nil
}

// Fleet builds the vehicles of the scenario.
func (s *Scenario) Fleet() []*Vehicle {
	out := make([]*Vehicle, len(s.Vehicles))
	for i, v := range s.Vehicles {
		out[i] = NewVehicle(v.ID, v.Position.point(), v.Speed, v.Capacity)
	}
	return out
}

// Requests builds the tasks of the scenario ordered by announcement time.
func (s *Scenario) Requests() ([]*model.Task, error) {
	out := make([]*model.Task, 0, len(s.Tasks))
	for _, ts := range s.Tasks {
		t := &model.Task{
			ID:               ts.ID,
			Pickup:           ts.Pickup.point(),
			Delivery:         ts.Delivery.point(),
			PickupWindow:     ts.PickupWindow.at(s.Start),
			DeliveryWindow:   ts.DeliveryWindow.at(s.Start),
			PickupDuration:   ts.PickupService,
			DeliveryDuration: ts.DeliveryService,
			Capacity:         ts.Capacity,
			Announced:        s.Start.Add(ts.At),
		}
		if t.Capacity == 0 {
			t.Capacity = 1
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Announced.Before(out[j].Announced) })
	return out, nil
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveScenario writes s as YAML.
func SaveScenario(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// GenerateConfig parameterizes Generate.
type GenerateConfig struct {
	Seed     int64
	Vehicles int
	Tasks    int
	// Area is the side of the square the fleet operates in.
	Area float64
	// Horizon spreads the announcements over [0, Horizon).
	Horizon  time.Duration
	Speed    float64
	Capacity float64
	Service  time.Duration
	Start    time.Time
}

// SetDefaults fills unset generation parameters.
func (c *GenerateConfig) SetDefaults() {
	if c.Vehicles <= 0 {
		c.Vehicles = 3
	}
	if c.Tasks < 0 {
		c.Tasks = 0
	}
	if c.Area <= 0 {
		c.Area = 1000
	}
	if c.Horizon <= 0 {
		c.Horizon = time.Hour
	}
	if c.Speed <= 0 {
		c.Speed = 10
	}
	if c.Capacity <= 0 {
		c.Capacity = 4
	}
	if c.Start.IsZero() {
		c.Start = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	}
}

// Generate builds a random scenario. The same configuration always yields
// the same scenario.
func Generate(cfg GenerateConfig) *Scenario {
	cfg.SetDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	pos := func() Position {
		return Position{X: round2(rng.Float64() * cfg.Area), Y: round2(rng.Float64() * cfg.Area)}
	}
	s := &Scenario{
		Name:  fmt.Sprintf("generated-%d", cfg.Seed),
		Seed:  cfg.Seed,
		Start: cfg.Start,
	}
	for i := 0; i < cfg.Vehicles; i++ {
		s.Vehicles = append(s.Vehicles, VehicleSpec{
			ID:       fmt.Sprintf("veh%03d", i+1),
			Position: pos(),
			Speed:    cfg.Speed,
			Capacity: cfg.Capacity,
		})
	}
	for i := 0; i < cfg.Tasks; i++ {
		at := time.Duration(rng.Int63n(int64(cfg.Horizon))).Truncate(time.Second)
		s.Tasks = append(s.Tasks, TaskSpec{
			ID:              fmt.Sprintf("task%04d", i+1),
			At:              at,
			Pickup:          pos(),
			Delivery:        pos(),
			DeliveryWindow:  Window{Open: at, Close: at + cfg.Horizon},
			PickupService:   cfg.Service,
			DeliveryService: cfg.Service,
			Capacity:        1,
		})
	}
	sort.SliceStable(s.Tasks, func(i, j int) bool { return s.Tasks[i].At < s.Tasks[j].At })
	return s
}

func round2(f float64) float64 {
	return float64(int64(f*100)) / 100
}

package simulator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioRoundTrip(t *testing.T) {
	s := Generate(GenerateConfig{Seed: 3, Vehicles: 2, Tasks: 5, Service: 30 * time.Second})
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, SaveScenario(path, s))

	got, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, s.Name, got.Name)
	assert.True(t, s.Start.Equal(got.Start))
	assert.Equal(t, s.Vehicles, got.Vehicles)
	assert.Equal(t, s.Tasks, got.Tasks)
}

func TestGenerateIsReproducible(t *testing.T) {
	a := Generate(GenerateConfig{Seed: 11, Tasks: 8})
	b := Generate(GenerateConfig{Seed: 11, Tasks: 8})
	c := Generate(GenerateConfig{Seed: 12, Tasks: 8})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Tasks, c.Tasks)
	assert.Len(t, a.Vehicles, 3)
	for i := 1; i < len(a.Tasks); i++ {
		assert.LessOrEqual(t, a.Tasks[i-1].At, a.Tasks[i].At)
	}
}

func TestScenarioRequests(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	s := &Scenario{
		Name:     "two",
		Start:    start,
		Vehicles: []VehicleSpec{{ID: "v1", Speed: 1, Capacity: 2}},
		Tasks: []TaskSpec{
			{ID: "late", At: time.Minute, Pickup: Position{X: 1}, DeliveryWindow: Window{Open: time.Minute, Close: time.Hour}},
			{ID: "early", Pickup: Position{X: 2}, PickupService: 10 * time.Second},
		},
	}
	require.NoError(t, s.Validate())
	tasks, err := s.Requests()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "early", tasks[0].ID)
	assert.Equal(t, 10*time.Second, tasks[0].PickupDuration)
	assert.Equal(t, 1.0, tasks[0].Capacity)
	assert.True(t, tasks[0].DeliveryWindow.End.IsZero())
	assert.Equal(t, start.Add(time.Minute), tasks[1].Announced)
	assert.Equal(t, start.Add(time.Hour), tasks[1].DeliveryWindow.End)

	fleet := s.Fleet()
	require.Len(t, fleet, 1)
	assert.Equal(t, "v1", fleet[0].ID())
}

func TestScenarioValidate(t *testing.T) {
	cases := map[string]*Scenario{
		"no vehicles":     {Name: "x"},
		"zero speed":      {Vehicles: []VehicleSpec{{ID: "v", Capacity: 1}}},
		"duplicate veh":   {Vehicles: []VehicleSpec{{ID: "v", Speed: 1, Capacity: 1}, {ID: "v", Speed: 1, Capacity: 1}}},
		"duplicate task":  {Vehicles: []VehicleSpec{{ID: "v", Speed: 1, Capacity: 1}}, Tasks: []TaskSpec{{ID: "t"}, {ID: "t"}}},
		"negative offset": {Vehicles: []VehicleSpec{{ID: "v", Speed: 1, Capacity: 1}}, Tasks: []TaskSpec{{ID: "t", At: -time.Second}}},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Validate())
		})
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

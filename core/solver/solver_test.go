package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/parcelmas/core/model"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func task(id string, px, py, dx, dy float64) *model.Task {
	return &model.Task{
		ID:       id,
		Pickup:   model.Point{X: px, Y: py},
		Delivery: model.Point{X: dx, Y: dy},
		Capacity: 1,
	}
}

func TestEvaluateWaitsAndCountsTardiness(t *testing.T) {
	p := task("p", 10, 0, 20, 0)
	p.PickupWindow = model.TimeWindow{Start: t0.Add(time.Minute)}
	p.DeliveryWindow = model.TimeWindow{Start: t0, End: t0.Add(65 * time.Second)}
	v := VehicleState{ID: "v", Speed: 1, Capacity: 1}

	c := Evaluate(v, []*model.Task{p, p}, t0)
	assert.InDelta(t, 20, c.Distance, 1e-9)
	assert.Equal(t, 20*time.Second, c.Travel)
	// arrives at 10s, waits until 60s, delivers at 70s
	assert.Equal(t, 5*time.Second, c.Tardiness)
	assert.Zero(t, c.Overload)
	assert.Equal(t, t0.Add(70*time.Second), c.Finish)
}

func TestEvaluateOverload(t *testing.T) {
	a := task("a", 1, 0, 5, 0)
	b := task("b", 2, 0, 6, 0)
	v := VehicleState{ID: "v", Speed: 1, Capacity: 1}
	c := Evaluate(v, []*model.Task{a, b, a, b}, t0)
	assert.InDelta(t, 1, c.Overload, 1e-9)
}

func TestCheapestInsertionServesEveryTask(t *testing.T) {
	a := task("a", 1, 0, 2, 0)
	b := task("b", 50, 50, 51, 50)
	c := task("c", 3, 0, 4, 0)
	carried := task("k", 0, 0, 9, 0)
	claimed := task("cl", 1, 1, 2, 2)
	p := Problem{
		Vehicles: []VehicleState{
			{ID: "v1", Speed: 1, Capacity: 10, Contents: []*model.Task{carried}, Prefix: []*model.Task{claimed}},
			{ID: "v2", Position: model.Point{X: 50, Y: 50}, Speed: 1, Capacity: 10},
		},
		Available: []*model.Task{a, b, c},
		Now:       t0,
	}
	s := NewCheapestInsertion(DefaultTravelTime())
	routes, err := s.Solve(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, Validate(p, routes))
	assert.Equal(t, "cl", routes[0][0].ID)
	assert.Equal(t, 2, model.Counts(routes[1])["b"], "remote task goes to the nearby vehicle")
}

func TestCheapestInsertionHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Problem{Vehicles: []VehicleState{{ID: "v"}}, Available: []*model.Task{task("a", 0, 0, 1, 1)}, Now: t0}
	_, err := NewCheapestInsertion(DefaultTravelTime()).Solve(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateRejectsBrokenRoutes(t *testing.T) {
	a := task("a", 0, 0, 1, 1)
	b := task("b", 0, 0, 1, 1)
	k := task("k", 0, 0, 1, 1)
	p := Problem{
		Vehicles: []VehicleState{
			{ID: "v1", Prefix: []*model.Task{a}},
			{ID: "v2", Contents: []*model.Task{k}},
		},
		Available: []*model.Task{b},
	}
	cases := map[string][][]*model.Task{
		"route count":   {{a, a, b, b}},
		"prefix lost":   {{b, a, a, b}, {k}},
		"duplicate":     {{a, a, b, b}, {k, b, b}},
		"missing":       {{a, a}, {k}},
		"moved carried": {{a, a, b, b, k}, {}},
		"unknown":       {{a, a, b, b, task("x", 0, 0, 0, 0)}, {k}},
		"single visit":  {{a, a, b}, {k}},
	}
	for name, routes := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate(p, routes)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrConsistency))
		})
	}
	require.NoError(t, Validate(p, [][]*model.Task{{a, b, a, b}, {k}}))
}

// Package solver defines the combinatorial route solver consumed by the
// solver-backed planners and bidders, together with a reference cheapest
// insertion implementation and a travel time objective.
package solver

import (
	"context"
	"time"

	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/model"
)

// VehicleState is the solver's view of one vehicle.
type VehicleState struct {
	ID       string
	Position model.Point
	Speed    float64
	Capacity float64
	// Contents are on board; each appears once in the output, as a delivery.
	Contents []*model.Task
	// Prefix holds committed pickups that must open the output route in this
	// order. Their deliveries are placed by the solver.
	Prefix []*model.Task
	// Route is the active route, used as a hint only.
	Route []*model.Task
}

// Carries reports whether t is on board.
func (v VehicleState) Carries(t *model.Task) bool {
	for _, c := range v.Contents {
		if c.ID == t.ID {
			return true
		}
	}
	return false
}

// Problem is one solver invocation.
type Problem struct {
	Vehicles  []VehicleState
	Available []*model.Task
	Now       time.Time
}

// Solver computes one route per vehicle of the problem, in the same order.
// Every available task must be visited twice by exactly one vehicle and every
// prefix must be kept.
type Solver interface {
	Solve(ctx context.Context, p Problem) ([][]*model.Task, error)
}

// Objective scores a complete set of routes. Lower is better.
type Objective interface {
	Cost(p Problem, routes [][]*model.Task) float64
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, p Problem) ([][]*model.Task, error)

func (f SolverFunc) Solve(ctx context.Context, p Problem) ([][]*model.Task, error) {
	return f(ctx, p)
}

// StateOf builds the solver view of v. Claimed tasks that are not on board
// form the prefix, ordered as they appear in the active route.
func StateOf(v fleet.Vehicle, claimed []*model.Task) VehicleState {
	route := v.Route()
	pending := model.NewTaskSet()
	for _, t := range claimed {
		if !v.Carries(t) {
			pending.Add(t)
		}
	}
	prefix := make([]*model.Task, 0, pending.Len())
	for _, t := range route {
		if pending.Contains(t) {
			prefix = append(prefix, t)
			pending.Remove(t)
		}
	}
	prefix = append(prefix, pending.Slice()...)
	return VehicleState{
		ID:       v.ID(),
		Position: v.Position(),
		Speed:    v.Speed(),
		Capacity: v.Capacity(),
		Contents: v.Contents(),
		Prefix:   prefix,
		Route:    route,
	}
}

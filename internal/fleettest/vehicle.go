// Package fleettest provides in-memory stand-ins for the motion layer used by
// package tests.
package fleettest

import (
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/model"
)

// Epoch is the reference time used by fixtures.
var Epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// Vehicle is a static vehicle whose state is set directly by tests.
type Vehicle struct {
	Name     string
	Pos      model.Point
	Velocity float64
	Cap      float64
	Cargo    []*model.Task
	Active   []*model.Task
	Moving   bool
	// SetRouteErr is returned by SetRoute when not nil.
	SetRouteErr error
	SetRoutes   int
}

// NewVehicle returns a vehicle at pos with unit speed and capacity 10.
func NewVehicle(id string, pos model.Point) *Vehicle {
	return &Vehicle{Name: id, Pos: pos, Velocity: 1, Cap: 10}
}

func (v *Vehicle) ID() string               { return v.Name }
func (v *Vehicle) Position() model.Point    { return v.Pos }
func (v *Vehicle) Speed() float64           { return v.Velocity }
func (v *Vehicle) Capacity() float64        { return v.Cap }
func (v *Vehicle) Contents() []*model.Task  { return append([]*model.Task(nil), v.Cargo...) }
func (v *Vehicle) Route() []*model.Task     { return append([]*model.Task(nil), v.Active...) }
func (v *Vehicle) Idle() bool               { return !v.Moving }
func (v *Vehicle) Carries(t *model.Task) bool {
	for _, c := range v.Cargo {
		if c.ID == t.ID {
			return true
		}
	}
	return false
}

// SetRoute stores route as the active route.
func (v *Vehicle) SetRoute(route []*model.Task) error {
	if v.SetRouteErr != nil {
		return v.SetRouteErr
	}
	v.SetRoutes++
	v.Active = append([]*model.Task(nil), route...)
	return nil
}

// Task builds a unit-capacity task with open windows.
func Task(id string, pickup, delivery model.Point) *model.Task {
	return &model.Task{ID: id, Pickup: pickup, Delivery: delivery, Capacity: 1, Announced: Epoch}
}

// Tasks builds n tasks named prefix1..prefixN spread on a line.
func Tasks(prefix string, n int) []*model.Task {
	out := make([]*model.Task, n)
	for i := range out {
		f := float64(i + 1)
		out[i] = Task(fmt.Sprintf("%s%d", prefix, i+1), model.Point{X: f, Y: 0}, model.Point{X: f, Y: f})
	}
	return out
}

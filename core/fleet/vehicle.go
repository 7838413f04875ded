// Package fleet describes the motion and execution layer the agents drive.
// The core never moves vehicles itself; it reads their state and hands them
// routes through this port.
package fleet

import "github.com/kilianp07/parcelmas/core/model"

// Vehicle is one physical vehicle as seen by its agent.
type Vehicle interface {
	ID() string
	Position() model.Point
	// Speed is expressed in distance units per second.
	Speed() float64
	Capacity() float64
	// Contents returns the tasks picked up and not yet delivered.
	Contents() []*model.Task
	Carries(t *model.Task) bool
	// Route returns the active route, current destination first.
	Route() []*model.Task
	// SetRoute replaces the active route.
	SetRoute(route []*model.Task) error
	// Idle is true when the vehicle is neither driving nor servicing a stop.
	Idle() bool
}


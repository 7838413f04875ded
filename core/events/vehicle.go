package events

import (
	"time"

	"github.com/kilianp07/parcelmas/core/model"
)

// VehicleEventKind is the closed set of motion-layer transitions an agent
// reacts to.
type VehicleEventKind int

const (
	// Departing is raised right before the vehicle leaves toward Task.
	Departing VehicleEventKind = iota + 1
	// Rerouted is raised when a new route made the vehicle abandon Task
	// while driving toward it.
	Rerouted
	// Unreachable is raised when the vehicle cannot serve Task.
	Unreachable
	// LegDone is raised once the pickup or delivery of Task is complete.
	LegDone
)

func (k VehicleEventKind) String() string {
	switch k {
	case Departing:
		return "departing"
	case Rerouted:
		return "rerouted"
	case Unreachable:
		return "unreachable"
	case LegDone:
		return "leg_done"
	default:
		return "unknown"
	}
}

// VehicleEvent is a state transition of one vehicle.
type VehicleEvent struct {
	Kind      VehicleEventKind
	VehicleID string
	Task      *model.Task
	Leg       model.LegKind
	Time      time.Time
}

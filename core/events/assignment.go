package events

import (
	"time"

	"github.com/kilianp07/parcelmas/core/model"
)

// AssignmentChanged is emitted by a communicator when a task was added to its
// assigned set.
type AssignmentChanged struct {
	VehicleID string
	Task      *model.Task
	Time      time.Time
}

// RouteChanged is emitted by an agent after it pushed a new route to its
// vehicle.
type RouteChanged struct {
	VehicleID string
	Route     []*model.Task
	Reason    string
	Time      time.Time
}

// Package mqtt declares the ports the fleet uses to talk to vehicles and to
// order sources over a message broker.
package mqtt

import (
	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/model"
)

// RoutePublisher sends the active route of a vehicle to that vehicle.
type RoutePublisher interface {
	// PublishRoute returns the identifier of the published message.
	PublishRoute(e events.RouteChanged) (messageID string, err error)
}

// TaskSource buffers the tasks received from outside the process.
type TaskSource interface {
	// Drain returns the tasks received since the previous call.
	Drain() []*model.Task
}

// Package comm is the link between an agent and the allocation mechanism.
// A communicator tracks the tasks allocated to its vehicle, split between
// assigned tasks, which may still be taken away, and claimed tasks, which the
// vehicle committed to.
package comm

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

// Communicator is the agent side of the allocation protocol.
type Communicator interface {
	Init(v fleet.Vehicle) error
	ID() string
	// Receive adds t to the assigned set and notifies subscribers.
	Receive(t *model.Task) error
	Claim(t *model.Task) error
	Unclaim(t *model.Task) error
	// Done forgets t once its pickup was completed.
	Done(t *model.Task)
	// Parcels returns the allocated tasks that are not on board yet.
	Parcels() []*model.Task
	Assigned() []*model.Task
	Claimed() []*model.Task
	IsAssigned(t *model.Task) bool
	IsClaimed(t *model.Task) bool
	Subscribe(fn func(events.AssignmentChanged))
}

// Bidder is a communicator taking part in auctions. Lower bids are better.
type Bidder interface {
	Communicator
	Bid(ctx context.Context, t *model.Task, now time.Time) (float64, error)
}

// Base implements Communicator. Bidders embed it.
type Base struct {
	log     logger.Logger
	clock   func() time.Time
	vehicle fleet.Vehicle

	assigned  *model.TaskSet
	claimed   *model.TaskSet
	listeners eventbus.Listeners[events.AssignmentChanged]
}

// NewBase returns a communicator that is not bound to a vehicle yet.
func NewBase(log logger.Logger) *Base {
	return &Base{
		log:      logger.OrNop(log),
		clock:    time.Now,
		assigned: model.NewTaskSet(),
		claimed:  model.NewTaskSet(),
	}
}

// SetClock replaces the source of event timestamps.
func (b *Base) SetClock(clock func() time.Time) {
	if clock != nil {
		b.clock = clock
	}
}

func (b *Base) Init(v fleet.Vehicle) error {
	if b.vehicle != nil {
		return fmt.Errorf("%w: communicator of %s initialized twice", model.ErrPrecondition, b.vehicle.ID())
	}
	if v == nil {
		return fmt.Errorf("%w: communicator needs a vehicle", model.ErrPrecondition)
	}
	b.vehicle = v
	return nil
}

// ID returns the vehicle ID, or an empty string before Init.
func (b *Base) ID() string {
	if b.vehicle == nil {
		return ""
	}
	return b.vehicle.ID()
}

// Now returns the current time of the communicator clock.
func (b *Base) Now() time.Time { return b.clock() }

// Vehicle returns the bound vehicle.
func (b *Base) Vehicle() fleet.Vehicle { return b.vehicle }

// Logger returns the communicator logger.
func (b *Base) Logger() logger.Logger { return b.log }

func (b *Base) Receive(t *model.Task) error {
	if b.vehicle == nil {
		return fmt.Errorf("%w: task %s received before init", model.ErrPrecondition, t.ID)
	}
	if b.claimed.Contains(t) || !b.assigned.Add(t) {
		return fmt.Errorf("%w: task %s already allocated to %s", model.ErrPrecondition, t.ID, b.ID())
	}
	b.log.Debugf("%s received %s", b.ID(), t.ID)
	b.listeners.Notify(events.AssignmentChanged{VehicleID: b.ID(), Task: t, Time: b.clock()})
	return nil
}

func (b *Base) Claim(t *model.Task) error {
	if !b.assigned.Remove(t) {
		return fmt.Errorf("%w: %s claims %s which is not assigned to it", model.ErrPrecondition, b.ID(), t.ID)
	}
	b.claimed.Add(t)
	return nil
}

func (b *Base) Unclaim(t *model.Task) error {
	if !b.claimed.Remove(t) {
		return fmt.Errorf("%w: %s unclaims %s which it has not claimed", model.ErrPrecondition, b.ID(), t.ID)
	}
	b.assigned.Add(t)
	return nil
}

func (b *Base) Done(t *model.Task) {
	b.assigned.Remove(t)
	b.claimed.Remove(t)
}

func (b *Base) Parcels() []*model.Task {
	out := make([]*model.Task, 0, b.assigned.Len()+b.claimed.Len())
	for _, set := range []*model.TaskSet{b.claimed, b.assigned} {
		for _, t := range set.Slice() {
			if b.vehicle == nil || !b.vehicle.Carries(t) {
				out = append(out, t)
			}
		}
	}
	return out
}

func (b *Base) Assigned() []*model.Task { return b.assigned.Slice() }

func (b *Base) Claimed() []*model.Task { return b.claimed.Slice() }

func (b *Base) IsAssigned(t *model.Task) bool { return b.assigned.Contains(t) }

func (b *Base) IsClaimed(t *model.Task) bool { return b.claimed.Contains(t) }

func (b *Base) Subscribe(fn func(events.AssignmentChanged)) { b.listeners.Add(fn) }

// ReplaceAssigned swaps the assigned set without notifying subscribers. It is
// used by protocols that reallocate tasks between agents and install the
// resulting routes themselves.
func (b *Base) ReplaceAssigned(tasks []*model.Task) {
	b.assigned = model.NewTaskSet(tasks...)
}

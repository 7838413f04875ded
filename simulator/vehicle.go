package simulator

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/model"
)

// EventHandler receives the transitions of a vehicle.
type EventHandler func(events.VehicleEvent) error

// Vehicle moves in a straight line towards the head of its route at constant
// speed. A stop starts once the vehicle is there and the stop window is open
// and lasts for the service duration of the leg.
type Vehicle struct {
	mu       sync.Mutex
	id       string
	pos      model.Point
	speed    float64
	capacity float64

	cargo []*model.Task
	load  float64
	route []*model.Task

	// target is the task the vehicle announced its departure to.
	target    *model.Task
	servicing *model.Stop
	remaining time.Duration

	distance float64
	queued   []events.VehicleEvent
	handler  EventHandler
}

// NewVehicle returns an idle vehicle at pos. Speed is in distance units per
// second.
func NewVehicle(id string, pos model.Point, speed, capacity float64) *Vehicle {
	return &Vehicle{id: id, pos: pos, speed: speed, capacity: capacity}
}

// SetHandler installs the receiver of the vehicle transitions.
func (v *Vehicle) SetHandler(h EventHandler) { v.handler = h }

func (v *Vehicle) ID() string { return v.id }

func (v *Vehicle) Position() model.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}

func (v *Vehicle) Speed() float64 { return v.speed }

func (v *Vehicle) Capacity() float64 { return v.capacity }

func (v *Vehicle) Contents() []*model.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*model.Task(nil), v.cargo...)
}

func (v *Vehicle) Carries(t *model.Task) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.carries(t)
}

func (v *Vehicle) carries(t *model.Task) bool {
	for _, c := range v.cargo {
		if c.ID == t.ID {
			return true
		}
	}
	return false
}

func (v *Vehicle) Route() []*model.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*model.Task(nil), v.route...)
}

// SetRoute replaces the route. Leaving the task the vehicle is driving to
// queues a Rerouted event, delivered on the next Step or Flush.
func (v *Vehicle) SetRoute(route []*model.Task) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range route {
		if t == nil {
			return fmt.Errorf("%w: nil task in route of %s", model.ErrPrecondition, v.id)
		}
	}
	if v.target != nil && (len(route) == 0 || route[0].ID != v.target.ID) {
		v.queued = append(v.queued, events.VehicleEvent{Kind: events.Rerouted, VehicleID: v.id, Task: v.target})
		v.target = nil
	}
	v.route = append([]*model.Task(nil), route...)
	return nil
}

func (v *Vehicle) Idle() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.servicing == nil && len(v.route) == 0
}

// Distance returns the distance driven so far.
func (v *Vehicle) Distance() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.distance
}

// Flush delivers the queued events stamped with now.
func (v *Vehicle) Flush(now time.Time) error {
	for {
		v.mu.Lock()
		if len(v.queued) == 0 {
			v.mu.Unlock()
			return nil
		}
		ev := v.queued[0]
		v.queued = v.queued[1:]
		v.mu.Unlock()
		ev.Time = now
		if err := v.emit(ev); err != nil {
			return err
		}
	}
}

func (v *Vehicle) emit(ev events.VehicleEvent) error {
	if v.handler == nil {
		return nil
	}
	return v.handler(ev)
}

// Step advances the vehicle by dt starting at now. Events are handled as they
// happen, so the route may change during the step.
func (v *Vehicle) Step(now time.Time, dt time.Duration) error {
	if err := v.Flush(now); err != nil {
		return err
	}
	for dt > 0 {
		ev, used, ok := v.advance(now, dt)
		dt -= used
		now = now.Add(used)
		if ev != nil {
			if err := v.emit(*ev); err != nil {
				return err
			}
			if err := v.Flush(now); err != nil {
				return err
			}
			continue
		}
		if !ok {
			return nil
		}
	}
	return nil
}

// advance performs the next piece of work within dt. It returns the event it
// produced, the time it used, and false when the vehicle has nothing to do.
func (v *Vehicle) advance(now time.Time, dt time.Duration) (*events.VehicleEvent, time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.servicing != nil {
		used := min(dt, v.remaining)
		v.remaining -= used
		if v.remaining > 0 {
			return nil, used, true
		}
		stop := *v.servicing
		v.servicing = nil
		v.complete(stop)
		return &events.VehicleEvent{Kind: events.LegDone, VehicleID: v.id, Task: stop.Task, Leg: stop.Kind, Time: now.Add(used)}, used, true
	}
	if len(v.route) == 0 {
		v.target = nil
		return nil, 0, false
	}
	head := v.route[0]
	if v.target == nil || v.target.ID != head.ID {
		v.target = head
		return &events.VehicleEvent{Kind: events.Departing, VehicleID: v.id, Task: head, Leg: v.kindOf(head), Time: now}, 0, true
	}

	stop := model.Stop{Task: head, Kind: v.kindOf(head)}
	if stop.Kind == model.Pickup && v.load+head.Capacity > v.capacity {
		v.route = model.Without(v.route, head)
		v.target = nil
		return &events.VehicleEvent{Kind: events.Unreachable, VehicleID: v.id, Task: head, Leg: stop.Kind, Time: now}, 0, true
	}
	dest := stop.Location()
	gap := r2.Sub(dest, v.pos)
	left := r2.Norm(gap)
	reach := v.speed * dt.Seconds()
	if reach < left {
		v.pos = r2.Add(v.pos, r2.Scale(reach/left, gap))
		v.distance += reach
		return nil, dt, true
	}
	v.pos = dest
	v.distance += left
	used := time.Duration(left / v.speed * float64(time.Second))
	arrival := now.Add(used)
	v.target = nil
	v.servicing = &stop
	v.remaining = stop.Service()
	if w := stop.Window(); arrival.Before(w.Start) {
		v.remaining += w.Start.Sub(arrival)
	}
	return nil, used, true
}

func (v *Vehicle) kindOf(t *model.Task) model.LegKind {
	if v.carries(t) {
		return model.Delivery
	}
	return model.Pickup
}

// complete applies a finished stop and drops its first occurrence from the
// route.
func (v *Vehicle) complete(stop model.Stop) {
	switch stop.Kind {
	case model.Pickup:
		v.cargo = append(v.cargo, stop.Task)
		v.load += stop.Task.Capacity
	case model.Delivery:
		for i, c := range v.cargo {
			if c.ID == stop.Task.ID {
				v.cargo = append(v.cargo[:i:i], v.cargo[i+1:]...)
				break
			}
		}
		v.load -= stop.Task.Capacity
	}
	for i, t := range v.route {
		if t.ID == stop.Task.ID {
			v.route = append(v.route[:i:i], v.route[i+1:]...)
			break
		}
	}
}

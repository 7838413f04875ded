package model

import "time"

// LegKind tells whether a visit picks a task up or delivers it.
type LegKind int

const (
	Pickup LegKind = iota + 1
	Delivery
)

func (k LegKind) String() string {
	switch k {
	case Pickup:
		return "pickup"
	case Delivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// Stop is one visit of a route.
type Stop struct {
	Task *Task
	Kind LegKind
}

// Location returns where the stop takes place.
func (s Stop) Location() Point {
	if s.Kind == Pickup {
		return s.Task.Pickup
	}
	return s.Task.Delivery
}

// Window returns the time window of the stop.
func (s Stop) Window() TimeWindow {
	if s.Kind == Pickup {
		return s.Task.PickupWindow
	}
	return s.Task.DeliveryWindow
}

// Service returns the service duration of the stop.
func (s Stop) Service() time.Duration {
	if s.Kind == Pickup {
		return s.Task.PickupDuration
	}
	return s.Task.DeliveryDuration
}

// Stops classifies the legs of a route. A task reported by carried is on
// board already, so its only occurrence is a delivery. For every other task
// the first occurrence is the pickup and the second the delivery.
func Stops(route []*Task, carried func(*Task) bool) []Stop {
	seen := make(map[string]bool, len(route))
	stops := make([]Stop, len(route))
	for i, t := range route {
		kind := Pickup
		if seen[t.ID] || (carried != nil && carried(t)) {
			kind = Delivery
		}
		seen[t.ID] = true
		stops[i] = Stop{Task: t, Kind: kind}
	}
	return stops
}

// Counts returns how many times each task occurs in the route.
func Counts(route []*Task) map[string]int {
	c := make(map[string]int, len(route))
	for _, t := range route {
		c[t.ID]++
	}
	return c
}

// EqualRoutes reports whether both routes visit the same tasks in the same
// order.
func EqualRoutes(a, b []*Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// HasPrefix reports whether route starts with prefix.
func HasPrefix(route, prefix []*Task) bool {
	if len(prefix) > len(route) {
		return false
	}
	return EqualRoutes(route[:len(prefix)], prefix)
}

// Without returns a copy of route with every occurrence of t removed.
func Without(route []*Task, t *Task) []*Task {
	out := make([]*Task, 0, len(route))
	for _, r := range route {
		if r.ID != t.ID {
			out = append(out, r)
		}
	}
	return out
}

// Distinct returns the tasks of the route once each, in order of first
// occurrence.
func Distinct(route []*Task) []*Task {
	return NewTaskSet(route...).Slice()
}

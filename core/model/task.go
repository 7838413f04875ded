package model

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a location on the plane the fleet operates in.
type Point = r2.Vec

// Distance returns the straight-line distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// TimeWindow bounds the moment a pickup or a delivery may start.
// A zero End means the window is open ended.
type TimeWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Open returns true if service may start at t.
func (w TimeWindow) Open(t time.Time) bool {
	return !t.Before(w.Start) && (w.End.IsZero() || !t.After(w.End))
}

// Lateness returns how far t is past the end of the window.
func (w TimeWindow) Lateness(t time.Time) time.Duration {
	if w.End.IsZero() || !t.After(w.End) {
		return 0
	}
	return t.Sub(w.End)
}

// Task is a pickup and delivery request. Tasks are created once when they are
// announced and are shared by pointer afterwards; they are never modified.
type Task struct {
	ID               string
	Pickup           Point
	Delivery         Point
	PickupWindow     TimeWindow
	DeliveryWindow   TimeWindow
	PickupDuration   time.Duration
	DeliveryDuration time.Duration
	Capacity         float64
	Announced        time.Time
}

// Validate checks that the task is usable by the fleet.
func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("task is nil")
	}
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Capacity < 0 {
		return fmt.Errorf("task %s: capacity must not be negative", t.ID)
	}
	if !t.PickupWindow.End.IsZero() && t.PickupWindow.End.Before(t.PickupWindow.Start) {
		return fmt.Errorf("task %s: pickup window ends before it starts", t.ID)
	}
	if !t.DeliveryWindow.End.IsZero() && t.DeliveryWindow.End.Before(t.DeliveryWindow.Start) {
		return fmt.Errorf("task %s: delivery window ends before it starts", t.ID)
	}
	return nil
}

func (t *Task) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.ID
}

// IDs returns the identifiers of the given tasks in order.
func IDs(tasks []*Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

package mqtt

import (
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/model"
	coremqtt "github.com/kilianp07/parcelmas/core/mqtt"
)

// Position is a point on the wire.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Window is a time window on the wire. Zero values leave a bound open.
type Window struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// TaskMessage announces a new transport request.
type TaskMessage struct {
	ID              string   `json:"id"`
	Pickup          Position `json:"pickup"`
	Delivery        Position `json:"delivery"`
	PickupWindow    Window   `json:"pickup_window"`
	DeliveryWindow  Window   `json:"delivery_window"`
	PickupServiceS  float64  `json:"pickup_service_s"`
	DeliveryService float64  `json:"delivery_service_s"`
	Capacity        float64  `json:"capacity"`
}

// Task converts the message into a task announced at now.
func (m TaskMessage) Task(now time.Time) (*model.Task, error) {
	t := &model.Task{
		ID:               m.ID,
		Pickup:           model.Point{X: m.Pickup.X, Y: m.Pickup.Y},
		Delivery:         model.Point{X: m.Delivery.X, Y: m.Delivery.Y},
		PickupWindow:     model.TimeWindow{Start: m.PickupWindow.Start, End: m.PickupWindow.End},
		DeliveryWindow:   model.TimeWindow{Start: m.DeliveryWindow.Start, End: m.DeliveryWindow.End},
		PickupDuration:   seconds(m.PickupServiceS),
		DeliveryDuration: seconds(m.DeliveryService),
		Capacity:         m.Capacity,
		Announced:        now,
	}
	if m.Capacity == 0 {
		t.Capacity = 1
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", coremqtt.ErrInvalidTask, err)
	}
	return t, nil
}

// Leg is one stop of a published route.
type Leg struct {
	TaskID   string   `json:"task_id"`
	Kind     string   `json:"kind"`
	Location Position `json:"location"`
}

// RouteMessage is published on the route topic of a vehicle.
type RouteMessage struct {
	MessageID string `json:"message_id"`
	VehicleID string `json:"vehicle_id"`
	Reason    string `json:"reason"`
	Legs      []Leg  `json:"legs"`
	Timestamp int64  `json:"timestamp"`
}

// NewRouteMessage describes e. A task seen once is already on board and
// only its delivery remains.
func NewRouteMessage(id string, e events.RouteChanged) RouteMessage {
	counts := model.Counts(e.Route)
	stops := model.Stops(e.Route, func(t *model.Task) bool { return counts[t.ID] == 1 })
	legs := make([]Leg, len(stops))
	for i, s := range stops {
		loc := s.Location()
		legs[i] = Leg{TaskID: s.Task.ID, Kind: s.Kind.String(), Location: Position{X: loc.X, Y: loc.Y}}
	}
	return RouteMessage{
		MessageID: id,
		VehicleID: e.VehicleID,
		Reason:    e.Reason,
		Legs:      legs,
		Timestamp: e.Time.UnixMilli(),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

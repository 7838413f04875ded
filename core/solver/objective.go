package solver

import (
	"math"
	"time"

	"github.com/kilianp07/parcelmas/core/model"
)

// RouteCost describes the execution of one route from the vehicle's current
// state.
type RouteCost struct {
	Distance  float64
	Travel    time.Duration
	Tardiness time.Duration
	// Overload accumulates the capacity excess over every leg.
	Overload float64
	Finish   time.Time
}

// Evaluate simulates route for v starting at now. Vehicles wait for the start
// of a time window and are late once its end has passed.
func Evaluate(v VehicleState, route []*model.Task, now time.Time) RouteCost {
	speed := v.Speed
	if speed <= 0 {
		speed = 1
	}
	var (
		cost RouteCost
		load float64
		pos  = v.Position
		t    = now
	)
	for _, c := range v.Contents {
		load += c.Capacity
	}
	for _, s := range model.Stops(route, v.Carries) {
		loc := s.Location()
		d := model.Distance(pos, loc)
		leg := time.Duration(d / speed * float64(time.Second))
		cost.Distance += d
		cost.Travel += leg
		t = t.Add(leg)
		w := s.Window()
		if t.Before(w.Start) {
			t = w.Start
		}
		cost.Tardiness += w.Lateness(t)
		t = t.Add(s.Service())
		if s.Kind == model.Pickup {
			load += s.Task.Capacity
		} else {
			load -= s.Task.Capacity
		}
		if v.Capacity > 0 && load > v.Capacity {
			cost.Overload += load - v.Capacity
		}
		pos = loc
	}
	cost.Finish = t
	return cost
}

// TravelTime scores routes by travel seconds plus weighted tardiness and
// capacity excess.
type TravelTime struct {
	TardinessWeight float64 `json:"tardiness_weight"`
	OverloadWeight  float64 `json:"overload_weight"`
}

// DefaultTravelTime weighs one second of tardiness like one second of travel
// and makes capacity excess prohibitive.
func DefaultTravelTime() TravelTime {
	return TravelTime{TardinessWeight: 1, OverloadWeight: 1e6}
}

// Cost implements Objective.
func (o TravelTime) Cost(p Problem, routes [][]*model.Task) float64 {
	var total float64
	for i, r := range routes {
		if i >= len(p.Vehicles) {
			break
		}
		total += o.RouteCost(p.Vehicles[i], r, p.Now)
	}
	return total
}

// RouteCost scores a single vehicle route.
func (o TravelTime) RouteCost(v VehicleState, route []*model.Task, now time.Time) float64 {
	c := Evaluate(v, route, now)
	cost := c.Travel.Seconds() + o.TardinessWeight*c.Tardiness.Seconds() + o.OverloadWeight*c.Overload
	if math.IsNaN(cost) {
		return math.Inf(1)
	}
	return cost
}

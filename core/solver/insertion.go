package solver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/parcelmas/core/model"
)

// CheapestInsertion builds routes by inserting, one at a time, every task at
// the position and in the vehicle that increases the objective the least.
// Committed prefixes are never touched.
type CheapestInsertion struct {
	Objective TravelTime
}

// NewCheapestInsertion returns a solver scoring routes with obj.
func NewCheapestInsertion(obj TravelTime) *CheapestInsertion {
	return &CheapestInsertion{Objective: obj}
}

// Solve implements Solver. The context is checked between insertions.
func (s *CheapestInsertion) Solve(ctx context.Context, p Problem) ([][]*model.Task, error) {
	routes := make([][]*model.Task, len(p.Vehicles))
	costs := make([]float64, len(p.Vehicles))
	for i, v := range p.Vehicles {
		r := append([]*model.Task(nil), v.Prefix...)
		fixed := append(append([]*model.Task(nil), v.Contents...), v.Prefix...)
		for _, t := range fixed {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r = s.insertDelivery(v, r, t, p)
		}
		routes[i] = r
		costs[i] = s.Objective.RouteCost(v, r, p.Now)
	}

	tasks := append([]*model.Task(nil), p.Available...)
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].PickupWindow.Start.Before(tasks[j].PickupWindow.Start)
	})
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(p.Vehicles) == 0 {
			return nil, fmt.Errorf("solver: no vehicle to serve %s", t.ID)
		}
		var (
			best      = -1
			bestRoute []*model.Task
			bestCost  float64
			bestDelta = math.Inf(1)
		)
		for i, v := range p.Vehicles {
			r, c := s.insertPair(v, routes[i], t, p)
			if delta := c - costs[i]; best < 0 || delta < bestDelta {
				best, bestRoute, bestCost, bestDelta = i, r, c, delta
			}
		}
		routes[best] = bestRoute
		costs[best] = bestCost
	}
	return routes, nil
}

// insertDelivery places the single delivery leg of t after the prefix.
func (s *CheapestInsertion) insertDelivery(v VehicleState, route []*model.Task, t *model.Task, p Problem) []*model.Task {
	var (
		best     []*model.Task
		bestCost = math.Inf(1)
	)
	for pos := len(v.Prefix); pos <= len(route); pos++ {
		cand := insertAt(route, pos, t)
		if c := s.Objective.RouteCost(v, cand, p.Now); best == nil || c < bestCost {
			best, bestCost = cand, c
		}
	}
	return best
}

// insertPair places the pickup and the delivery of t after the prefix and
// returns the resulting route with its cost.
func (s *CheapestInsertion) insertPair(v VehicleState, route []*model.Task, t *model.Task, p Problem) ([]*model.Task, float64) {
	var (
		best     []*model.Task
		bestCost = math.Inf(1)
	)
	for i := len(v.Prefix); i <= len(route); i++ {
		withPickup := insertAt(route, i, t)
		for j := i + 1; j <= len(withPickup); j++ {
			cand := insertAt(withPickup, j, t)
			if c := s.Objective.RouteCost(v, cand, p.Now); best == nil || c < bestCost {
				best, bestCost = cand, c
			}
		}
	}
	return best, bestCost
}

func insertAt(route []*model.Task, pos int, t *model.Task) []*model.Task {
	out := make([]*model.Task, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, t)
	return append(out, route[pos:]...)
}

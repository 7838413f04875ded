package solver

import (
	"fmt"

	"github.com/kilianp07/parcelmas/core/model"
)

// Validate checks that routes is a valid answer to p: one route per vehicle,
// prefixes kept, carried tasks delivered once by their vehicle, every other
// task picked up before it is delivered by a single vehicle and nothing
// unknown or duplicated. Violations wrap model.ErrConsistency.
func Validate(p Problem, routes [][]*model.Task) error {
	if len(routes) != len(p.Vehicles) {
		return fmt.Errorf("%w: %d routes for %d vehicles", model.ErrConsistency, len(routes), len(p.Vehicles))
	}
	want := make(map[string]int)
	owner := make(map[string]int)
	for i, v := range p.Vehicles {
		for _, t := range v.Contents {
			want[t.ID] = 1
			owner[t.ID] = i
		}
		for _, t := range v.Prefix {
			want[t.ID] = 2
			owner[t.ID] = i
		}
	}
	for _, t := range p.Available {
		if _, fixed := want[t.ID]; fixed {
			return fmt.Errorf("%w: task %s is both fixed and available", model.ErrConsistency, t.ID)
		}
		want[t.ID] = 2
		owner[t.ID] = -1
	}

	got := make(map[string]int, len(want))
	for i, r := range routes {
		v := p.Vehicles[i]
		if !model.HasPrefix(r, v.Prefix) {
			return fmt.Errorf("%w: route of %s does not start with its committed prefix", model.ErrConsistency, v.ID)
		}
		for id, n := range model.Counts(r) {
			w, ok := want[id]
			if !ok {
				return fmt.Errorf("%w: route of %s visits unknown task %s", model.ErrConsistency, v.ID, id)
			}
			if o := owner[id]; o >= 0 && o != i {
				return fmt.Errorf("%w: task %s moved away from vehicle %s", model.ErrConsistency, id, p.Vehicles[o].ID)
			}
			if n != w {
				return fmt.Errorf("%w: task %s visited %d times by %s, want %d", model.ErrConsistency, id, n, v.ID, w)
			}
			if _, dup := got[id]; dup {
				return fmt.Errorf("%w: task %s served by two vehicles", model.ErrConsistency, id)
			}
			got[id] = n
		}
	}
	for id := range want {
		if _, ok := got[id]; !ok {
			return fmt.Errorf("%w: task %s missing from every route", model.ErrConsistency, id)
		}
	}
	return nil
}

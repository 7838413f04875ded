package route

import (
	"time"

	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
)

// ClosestFirstStrategy repeatedly drives to the nearest stop that may be
// visited next: the pickup of a waiting parcel or the delivery of a task on
// board. Equal distances are broken by task ID, pickups first.
type ClosestFirstStrategy struct{}

// NewClosestFirst returns a planner with a ClosestFirstStrategy.
func NewClosestFirst(log logger.Logger) *RoutePlanner {
	return New("closest", ClosestFirstStrategy{}, log)
}

// Plan implements Strategy.
func (ClosestFirstStrategy) Plan(v fleet.Vehicle, parcels, _ []*model.Task, _ time.Time) ([]*model.Task, error) {
	onBoard, onMap := split(v, parcels)
	var open []model.Stop
	for _, t := range onBoard {
		open = append(open, model.Stop{Task: t, Kind: model.Delivery})
	}
	for _, t := range onMap {
		open = append(open, model.Stop{Task: t, Kind: model.Pickup})
	}

	seq := make([]*model.Task, 0, len(onBoard)+2*len(onMap))
	pos := v.Position()
	for len(open) > 0 {
		best := 0
		bestDist := model.Distance(pos, open[0].Location())
		for i := 1; i < len(open); i++ {
			d := model.Distance(pos, open[i].Location())
			if d < bestDist || (d == bestDist && before(open[i], open[best])) {
				best, bestDist = i, d
			}
		}
		stop := open[best]
		seq = append(seq, stop.Task)
		pos = stop.Location()
		if stop.Kind == model.Pickup {
			open[best] = model.Stop{Task: stop.Task, Kind: model.Delivery}
		} else {
			open = append(open[:best], open[best+1:]...)
		}
	}
	return seq, nil
}

func before(a, b model.Stop) bool {
	if a.Task.ID != b.Task.ID {
		return a.Task.ID < b.Task.ID
	}
	return a.Kind < b.Kind
}

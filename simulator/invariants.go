package simulator

import (
	"fmt"

	"github.com/kilianp07/parcelmas/core/model"
)

// Check verifies task ownership across the fleet: no agent holds a task both
// assigned and claimed, no task is claimed twice, and every announced task
// still undelivered is held by exactly one agent.
func (w *World) Check() error {
	owner := make(map[string]string, len(w.open))
	claimedBy := make(map[string]string)
	for _, m := range w.members {
		c := m.agent.Communicator()
		id := m.vehicle.ID()
		held := model.NewTaskSet(c.Assigned()...)
		for _, t := range c.Claimed() {
			if held.Contains(t) {
				return fmt.Errorf("%w: %s holds %s both assigned and claimed", model.ErrConsistency, id, t.ID)
			}
			if other, ok := claimedBy[t.ID]; ok {
				return fmt.Errorf("%w: %s claimed by %s and %s", model.ErrConsistency, t.ID, other, id)
			}
			claimedBy[t.ID] = id
			held.Add(t)
		}
		for _, t := range m.vehicle.Contents() {
			held.Add(t)
		}
		for _, t := range held.Slice() {
			if other, ok := owner[t.ID]; ok {
				return fmt.Errorf("%w: %s held by %s and %s", model.ErrConsistency, t.ID, other, id)
			}
			if _, ok := w.open[t.ID]; !ok {
				return fmt.Errorf("%w: %s holds %s which is not an open task", model.ErrConsistency, id, t.ID)
			}
			owner[t.ID] = id
		}
	}
	if len(owner) != len(w.open) {
		for tid := range w.open {
			if _, ok := owner[tid]; !ok {
				return fmt.Errorf("%w: open task %s is held by no agent", model.ErrConsistency, tid)
			}
		}
	}
	return nil
}

package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/core/solver"
)

const defaultPlanBudget = 200 * time.Millisecond

// SolverStrategy delegates sequencing to a solver with a single vehicle
// problem. The pickup the vehicle is driving to is committed and stays first.
// When the solver fails or runs out of budget the previous sequence is kept,
// patched with the parcels it was missing.
type SolverStrategy struct {
	solver solver.Solver
	budget time.Duration
	log    logger.Logger
}

// NewSolverStrategy returns a strategy giving s at most budget per update.
func NewSolverStrategy(s solver.Solver, budget time.Duration, log logger.Logger) *SolverStrategy {
	if budget <= 0 {
		budget = defaultPlanBudget
	}
	return &SolverStrategy{solver: s, budget: budget, log: logger.OrNop(log)}
}

// NewSolverPlanner returns a planner backed by a SolverStrategy.
func NewSolverPlanner(s solver.Solver, budget time.Duration, log logger.Logger) *RoutePlanner {
	return New("solver", NewSolverStrategy(s, budget, log), log)
}

// Plan implements Strategy.
func (s *SolverStrategy) Plan(v fleet.Vehicle, parcels, prev []*model.Task, now time.Time) ([]*model.Task, error) {
	p := problemFor(v, parcels, now)
	ctx, cancel := context.WithTimeout(context.Background(), s.budget)
	defer cancel()
	routes, err := s.solver.Solve(ctx, p)
	if err == nil {
		if verr := solver.Validate(p, routes); verr != nil {
			return nil, verr
		}
		return routes[0], nil
	}
	s.log.Warnf("solver failed for %s, keeping previous route: %v", v.ID(), err)
	onBoard, onMap := split(v, parcels)
	return mergeStale(prev, onBoard, onMap), nil
}

// problemFor builds the single vehicle problem for v. The head of the active
// route is committed when the vehicle is already heading to that pickup.
func problemFor(v fleet.Vehicle, parcels []*model.Task, now time.Time) solver.Problem {
	_, onMap := split(v, parcels)
	var committed []*model.Task
	if active := v.Route(); len(active) > 0 && !v.Idle() {
		head := active[0]
		if !v.Carries(head) && model.NewTaskSet(onMap...).Contains(head) {
			committed = append(committed, head)
		}
	}
	state := solver.StateOf(v, committed)
	available := onMap
	for _, t := range committed {
		available = model.Without(available, t)
	}
	return solver.Problem{Vehicles: []solver.VehicleState{state}, Available: available, Now: now}
}

// mergeStale keeps the legs of prev that are still valid, in order, and
// appends the legs it lacks. A carried task keeps its last occurrence only.
func mergeStale(prev, onBoard, onMap []*model.Task) []*model.Task {
	need := make(map[string]int, len(onBoard)+len(onMap))
	for _, t := range onMap {
		need[t.ID] = 2
	}
	for _, t := range onBoard {
		need[t.ID] = 1
	}
	remaining := model.Counts(prev)
	placed := make(map[string]int, len(need))
	out := make([]*model.Task, 0, len(onBoard)+2*len(onMap))
	for _, t := range prev {
		remaining[t.ID]--
		missing := need[t.ID] - placed[t.ID]
		if missing <= 0 || remaining[t.ID] >= missing {
			continue
		}
		out = append(out, t)
		placed[t.ID]++
	}
	for _, group := range [][]*model.Task{onBoard, onMap} {
		for _, t := range group {
			for placed[t.ID] < need[t.ID] {
				out = append(out, t)
				placed[t.ID]++
			}
		}
	}
	return out
}

type staleStrategy struct{}

func (staleStrategy) Plan(v fleet.Vehicle, parcels, prev []*model.Task, _ time.Time) ([]*model.Task, error) {
	onBoard, onMap := split(v, parcels)
	return mergeStale(prev, onBoard, onMap), nil
}

// AsyncSolverPlanner computes its sequences on a background worker. Update
// returns at once with the previous sequence patched for the new parcels and
// starts a computation; Poll installs the result when it is still current.
type AsyncSolverPlanner struct {
	*RoutePlanner
	worker *solver.Worker

	parcels  []*model.Task
	version  uint64
	pending  bool
	advanced bool
}

// NewAsyncSolverPlanner returns a background planner. Each computation gets
// at most budget.
func NewAsyncSolverPlanner(s solver.Solver, budget time.Duration, log logger.Logger) *AsyncSolverPlanner {
	return &AsyncSolverPlanner{
		RoutePlanner: New("solver-async", staleStrategy{}, log),
		worker:       solver.NewWorker(s, budget, log),
	}
}

func (p *AsyncSolverPlanner) Update(parcels []*model.Task, now time.Time) error {
	if err := p.RoutePlanner.Update(parcels, now); err != nil {
		return err
	}
	p.parcels = append([]*model.Task(nil), parcels...)
	return p.start(now)
}

func (p *AsyncSolverPlanner) Advance(now time.Time) (*model.Task, error) {
	next, err := p.RoutePlanner.Advance(now)
	if err == nil && p.pending {
		p.advanced = true
	}
	return next, err
}

// SetRoute installs route and abandons the computation in flight.
func (p *AsyncSolverPlanner) SetRoute(route []*model.Task) error {
	if err := p.RoutePlanner.SetRoute(route); err != nil {
		return err
	}
	p.pending = false
	return nil
}

// Poll installs the latest finished computation. A result computed before
// the vehicle completed a leg is dropped and the computation restarted.
func (p *AsyncSolverPlanner) Poll(now time.Time) (bool, error) {
	if !p.pending {
		return false, nil
	}
	res, ok := p.worker.Poll()
	if !ok || res.Version != p.version {
		return false, nil
	}
	p.pending = false
	if res.Err != nil {
		if errors.Is(res.Err, model.ErrConsistency) {
			return false, fmt.Errorf("%s planner: %w", p.name, res.Err)
		}
		p.log.Warnf("background solver failed for %s, keeping current route: %v", p.vehicle.ID(), res.Err)
		return false, nil
	}
	if p.advanced {
		p.log.Debugf("solver result for %s outdated by a completed leg, restarting", p.vehicle.ID())
		p.parcels = model.Distinct(p.seq)
		return false, p.start(now)
	}
	route := res.Routes[0]
	if model.EqualRoutes(route, p.seq) {
		return false, nil
	}
	p.seq = append([]*model.Task(nil), route...)
	return true, nil
}

// Pending reports whether a computation is awaited.
func (p *AsyncSolverPlanner) Pending() bool { return p.pending }

// Close stops the background worker.
func (p *AsyncSolverPlanner) Close() error { return p.worker.Close() }

func (p *AsyncSolverPlanner) start(now time.Time) error {
	version, err := p.worker.Start(problemFor(p.vehicle, p.parcels, now))
	if err != nil {
		return fmt.Errorf("%s planner: %w", p.name, err)
	}
	p.version, p.pending, p.advanced = version, true, false
	return nil
}

package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/factory"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/negotiation"
	"github.com/kilianp07/parcelmas/core/route"
	"github.com/kilianp07/parcelmas/core/solver"
)

// Env carries what an agent's planner and bidder share with the rest of the
// fleet. Index is the position of the vehicle in the fleet and offsets seeds
// so that random modules differ between agents.
type Env struct {
	Index     int
	Solver    solver.Solver
	Objective solver.Objective
	Group     *negotiation.Group
	Recorder  metrics.NegotiationRecorder
	Log       logger.Logger
}

// SolverFactory builds a solver and the objective it minimises from raw config.
type SolverFactory func(conf map[string]any) (solver.Solver, solver.Objective, error)

// PlannerFactory builds the route planner of one agent.
type PlannerFactory func(conf map[string]any, env Env) (route.Planner, error)

// BidderFactory builds the communicator of one agent.
type BidderFactory func(conf map[string]any, env Env) (comm.Bidder, error)

var (
	Solvers  = map[string]SolverFactory{}
	Planners = map[string]PlannerFactory{}
	Bidders  = map[string]BidderFactory{}
)

func RegisterSolver(name string, f SolverFactory)   { Solvers[name] = f }
func RegisterPlanner(name string, f PlannerFactory) { Planners[name] = f }
func RegisterBidder(name string, f BidderFactory)   { Bidders[name] = f }

// NewSolver instantiates the configured solver.
func NewSolver(mc factory.ModuleConfig) (solver.Solver, solver.Objective, error) {
	f, ok := Solvers[mc.Type]
	if !ok {
		return nil, nil, unknown("solver", mc.Type, Solvers)
	}
	return f(mc.Conf)
}

// NewPlanner instantiates the configured planner for one agent.
func NewPlanner(mc factory.ModuleConfig, env Env) (route.Planner, error) {
	f, ok := Planners[mc.Type]
	if !ok {
		return nil, unknown("planner", mc.Type, Planners)
	}
	return f(mc.Conf, env)
}

// NewBidder instantiates the configured bidder for one agent.
func NewBidder(mc factory.ModuleConfig, env Env) (comm.Bidder, error) {
	f, ok := Bidders[mc.Type]
	if !ok {
		return nil, unknown("bidder", mc.Type, Bidders)
	}
	return f(mc.Conf, env)
}

func unknown[F any](kind, name string, reg map[string]F) error {
	names := make([]string, 0, len(reg))
	for n := range reg {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Errorf("unknown %s %q (known: %v)", kind, name, names)
}

package plugins

import (
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/factory"
	"github.com/kilianp07/parcelmas/core/negotiation"
	"github.com/kilianp07/parcelmas/core/route"
	"github.com/kilianp07/parcelmas/core/solver"
)

// DefaultBudget bounds one solver call when no budget is configured.
const DefaultBudget = 200 * time.Millisecond

type seedConf struct {
	Seed int64 `json:"seed"`
}

type budgetConf struct {
	Budget time.Duration `json:"budget"`
}

func decodeBudget(conf map[string]any) (time.Duration, error) {
	c := budgetConf{Budget: DefaultBudget}
	if err := factory.Decode(conf, &c); err != nil {
		return 0, err
	}
	if c.Budget <= 0 {
		return 0, fmt.Errorf("budget must be positive, got %s", c.Budget)
	}
	return c.Budget, nil
}

func requireSolver(env Env) error {
	if env.Solver == nil || env.Objective == nil {
		return fmt.Errorf("no solver configured")
	}
	return nil
}

func init() {
	RegisterSolver("insertion", func(conf map[string]any) (solver.Solver, solver.Objective, error) {
		obj := solver.DefaultTravelTime()
		if err := factory.Decode(conf, &obj); err != nil {
			return nil, nil, err
		}
		return solver.NewCheapestInsertion(obj), obj, nil
	})

	RegisterPlanner("closest", func(_ map[string]any, env Env) (route.Planner, error) {
		return route.NewClosestFirst(env.Log), nil
	})
	RegisterPlanner("random", func(conf map[string]any, env Env) (route.Planner, error) {
		var c seedConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return route.NewRandom(c.Seed+int64(env.Index), env.Log), nil
	})
	RegisterPlanner("solver", func(conf map[string]any, env Env) (route.Planner, error) {
		if err := requireSolver(env); err != nil {
			return nil, err
		}
		budget, err := decodeBudget(conf)
		if err != nil {
			return nil, err
		}
		return route.NewSolverPlanner(env.Solver, budget, env.Log), nil
	})
	RegisterPlanner("solver-async", func(conf map[string]any, env Env) (route.Planner, error) {
		if err := requireSolver(env); err != nil {
			return nil, err
		}
		budget, err := decodeBudget(conf)
		if err != nil {
			return nil, err
		}
		return route.NewAsyncSolverPlanner(env.Solver, budget, env.Log), nil
	})

	RegisterBidder("random", func(conf map[string]any, env Env) (comm.Bidder, error) {
		var c seedConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return comm.NewRandomBidder(c.Seed+int64(env.Index), env.Log), nil
	})
	RegisterBidder("insertion", func(conf map[string]any, env Env) (comm.Bidder, error) {
		if err := requireSolver(env); err != nil {
			return nil, err
		}
		budget, err := decodeBudget(conf)
		if err != nil {
			return nil, err
		}
		return comm.NewInsertionBidder(env.Solver, env.Objective, budget, env.Log), nil
	})
	RegisterBidder("negotiation", func(conf map[string]any, env Env) (comm.Bidder, error) {
		if err := requireSolver(env); err != nil {
			return nil, err
		}
		if env.Group == nil {
			return nil, fmt.Errorf("negotiation bidder requires a group")
		}
		budget, err := decodeBudget(conf)
		if err != nil {
			return nil, err
		}
		base := comm.NewInsertionBidder(env.Solver, env.Objective, budget, env.Log)
		b := negotiation.NewBidder(base, env.Group, budget, env.Log)
		if env.Recorder != nil {
			b.SetRecorder(env.Recorder)
		}
		return b, nil
	})
}

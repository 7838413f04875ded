package comm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/core/solver"
)

// RandomBidder bids a uniform value in [0, 1).
type RandomBidder struct {
	*Base
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomBidder returns a bidder drawing from its own seeded generator.
func NewRandomBidder(seed int64, log logger.Logger) *RandomBidder {
	return &RandomBidder{Base: NewBase(log), rng: rand.New(rand.NewSource(seed))}
}

func (b *RandomBidder) Bid(_ context.Context, t *model.Task, _ time.Time) (float64, error) {
	if b.vehicle == nil {
		return 0, fmt.Errorf("%w: bid on %s before init", model.ErrPrecondition, t.ID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64(), nil
}

const defaultBidBudget = 100 * time.Millisecond

// InsertionBidder bids the marginal cost of serving a task: the objective of
// the best route including it minus the objective of the best route without
// it.
type InsertionBidder struct {
	*Base
	solver    solver.Solver
	objective solver.Objective
	budget    time.Duration
}

// NewInsertionBidder returns a bidder giving each bid at most budget.
func NewInsertionBidder(s solver.Solver, obj solver.Objective, budget time.Duration, log logger.Logger) *InsertionBidder {
	if budget <= 0 {
		budget = defaultBidBudget
	}
	return &InsertionBidder{Base: NewBase(log), solver: s, objective: obj, budget: budget}
}

// Solver returns the solver used for bidding.
func (b *InsertionBidder) Solver() solver.Solver { return b.solver }

func (b *InsertionBidder) Bid(ctx context.Context, t *model.Task, now time.Time) (float64, error) {
	if b.vehicle == nil {
		return 0, fmt.Errorf("%w: bid on %s before init", model.ErrPrecondition, t.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, b.budget)
	defer cancel()

	p := b.Problem(now)
	without, err := b.cost(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("bid of %s on %s: %w", b.ID(), t.ID, err)
	}
	p.Available = append(p.Available, t)
	with, err := b.cost(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("bid of %s on %s: %w", b.ID(), t.ID, err)
	}
	return with - without, nil
}

// Problem returns the single vehicle problem of the current allocation.
// Claimed tasks not on board are committed.
func (b *InsertionBidder) Problem(now time.Time) solver.Problem {
	state := solver.StateOf(b.vehicle, b.Claimed())
	return solver.Problem{
		Vehicles:  []solver.VehicleState{state},
		Available: b.Available(),
		Now:       now,
	}
}

// Available returns the assigned tasks not on board.
func (b *InsertionBidder) Available() []*model.Task {
	var out []*model.Task
	for _, t := range b.Assigned() {
		if !b.vehicle.Carries(t) {
			out = append(out, t)
		}
	}
	return out
}

func (b *InsertionBidder) cost(ctx context.Context, p solver.Problem) (float64, error) {
	routes, err := b.solver.Solve(ctx, p)
	if err != nil {
		return 0, err
	}
	if err := solver.Validate(p, routes); err != nil {
		return 0, err
	}
	return b.objective.Cost(p, routes), nil
}

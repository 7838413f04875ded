// Package route implements the per-agent route planners.
//
// Every planner follows the same lifecycle: Init once, then Update any number
// of times, with Advance moving one leg forward. Reads between two modifying
// calls always return the same values. Strategies only decide how a sequence
// is computed.
package route

import (
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
)

// State is the lifecycle state of a planner.
type State int

const (
	Uninitialized State = iota
	Initialized
	Updated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Planner owns the ordered legs one agent still has to visit.
type Planner interface {
	Init(v fleet.Vehicle) error
	// Update recomputes the sequence from the not yet picked up parcels and
	// the tasks the vehicle carries.
	Update(parcels []*model.Task, now time.Time) error
	Current() *model.Task
	Advance(now time.Time) (*model.Task, error)
	Previous() *model.Task
	History() []*model.Task
	HasNext() bool
	Route() []*model.Task
	// SetRoute installs route as is, without recomputation.
	SetRoute(route []*model.Task) error
	State() State
}

// Poller is implemented by planners computing in the background. Poll applies
// a finished computation and reports whether the sequence changed.
type Poller interface {
	Poll(now time.Time) (bool, error)
}

// Strategy computes a full sequence for a vehicle. prev is the sequence
// currently held by the planner.
type Strategy interface {
	Plan(v fleet.Vehicle, parcels, prev []*model.Task, now time.Time) ([]*model.Task, error)
}

// RoutePlanner implements Planner on top of a Strategy.
type RoutePlanner struct {
	name     string
	strategy Strategy
	log      logger.Logger

	vehicle fleet.Vehicle
	state   State
	seq     []*model.Task
	history []*model.Task
}

// New returns a planner computing its sequences with s.
func New(name string, s Strategy, log logger.Logger) *RoutePlanner {
	return &RoutePlanner{name: name, strategy: s, log: logger.OrNop(log)}
}

// Name identifies the strategy in logs.
func (p *RoutePlanner) Name() string { return p.name }

func (p *RoutePlanner) Init(v fleet.Vehicle) error {
	if p.state != Uninitialized {
		return fmt.Errorf("%w: %s planner initialized twice", model.ErrPrecondition, p.name)
	}
	if v == nil {
		return fmt.Errorf("%w: %s planner needs a vehicle", model.ErrPrecondition, p.name)
	}
	p.vehicle = v
	p.state = Initialized
	return nil
}

func (p *RoutePlanner) Update(parcels []*model.Task, now time.Time) error {
	if p.state == Uninitialized {
		return fmt.Errorf("%w: %s planner updated before init", model.ErrPrecondition, p.name)
	}
	seq, err := p.strategy.Plan(p.vehicle, parcels, p.seq, now)
	if err != nil {
		return fmt.Errorf("%s planner: %w", p.name, err)
	}
	p.seq = seq
	p.state = Updated
	p.log.Debugw("route updated", map[string]any{
		"planner": p.name,
		"vehicle": p.vehicle.ID(),
		"legs":    len(seq),
	})
	return nil
}

func (p *RoutePlanner) Current() *model.Task {
	if len(p.seq) == 0 {
		return nil
	}
	return p.seq[0]
}

func (p *RoutePlanner) Advance(now time.Time) (*model.Task, error) {
	if p.state != Updated {
		return nil, fmt.Errorf("%w: %s planner advanced before update", model.ErrPrecondition, p.name)
	}
	if len(p.seq) > 0 {
		p.history = append(p.history, p.seq[0])
		p.seq = p.seq[1:]
	}
	return p.Current(), nil
}

func (p *RoutePlanner) Previous() *model.Task {
	if len(p.history) == 0 {
		return nil
	}
	return p.history[len(p.history)-1]
}

func (p *RoutePlanner) History() []*model.Task {
	return append([]*model.Task(nil), p.history...)
}

func (p *RoutePlanner) HasNext() bool { return len(p.seq) > 1 }

func (p *RoutePlanner) Route() []*model.Task {
	return append([]*model.Task(nil), p.seq...)
}

func (p *RoutePlanner) SetRoute(route []*model.Task) error {
	if p.state == Uninitialized {
		return fmt.Errorf("%w: %s planner given a route before init", model.ErrPrecondition, p.name)
	}
	p.seq = append([]*model.Task(nil), route...)
	p.state = Updated
	return nil
}

func (p *RoutePlanner) State() State { return p.state }

// Vehicle returns the vehicle bound by Init.
func (p *RoutePlanner) Vehicle() fleet.Vehicle { return p.vehicle }

// split separates the tasks on board of v from the distinct parcels still
// waiting for a pickup.
func split(v fleet.Vehicle, parcels []*model.Task) (onBoard, onMap []*model.Task) {
	waiting := model.NewTaskSet()
	for _, t := range parcels {
		if !v.Carries(t) {
			waiting.Add(t)
		}
	}
	return v.Contents(), waiting.Slice()
}

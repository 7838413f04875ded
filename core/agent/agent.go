// Package agent binds a route planner and a communicator to one vehicle. The
// agent reacts to motion-layer transitions and to assignment changes: it
// claims the stop the vehicle departs to, releases the ones it abandons,
// re-plans and pushes the resulting route to the vehicle.
package agent

import (
	"fmt"
	"time"

	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/core/negotiation"
	"github.com/kilianp07/parcelmas/core/route"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

// Reasons attached to route changes.
const (
	ReasonAssignment  = "assignment"
	ReasonLostRace    = "lost_race"
	ReasonUnreachable = "unreachable"
	ReasonLegDone     = "leg_done"
	ReasonSolver      = "solver"
	ReasonNegotiation = "negotiation"
)

// Config configures an agent.
type Config struct {
	// Lazy defers re-planning after an assignment change until the vehicle
	// is idle or completes a leg.
	Lazy bool `json:"lazy"`
}

// Agent orchestrates one vehicle.
type Agent struct {
	cfg     Config
	log     logger.Logger
	planner route.Planner
	comm    comm.Communicator

	vehicle fleet.Vehicle
	changed bool
	// err keeps a failure raised inside an assignment notification until the
	// next call able to return it.
	err    error
	routes eventbus.Listeners[events.RouteChanged]
}

type installerSetter interface {
	SetInstaller(negotiation.Installer)
}

// New returns an agent that is not bound to a vehicle yet.
func New(cfg Config, p route.Planner, c comm.Communicator, log logger.Logger) *Agent {
	return &Agent{cfg: cfg, log: logger.OrNop(log), planner: p, comm: c}
}

// Init binds the planner and the communicator to v.
func (a *Agent) Init(v fleet.Vehicle, now time.Time) error {
	if a.vehicle != nil {
		return fmt.Errorf("%w: agent of %s initialized twice", model.ErrPrecondition, a.vehicle.ID())
	}
	if err := a.planner.Init(v); err != nil {
		return err
	}
	if err := a.comm.Init(v); err != nil {
		return err
	}
	a.vehicle = v
	a.comm.Subscribe(a.onAssignment)
	if s, ok := a.comm.(installerSetter); ok {
		s.SetInstaller(a)
	}
	if err := a.planner.Update(a.comm.Parcels(), now); err != nil {
		return err
	}
	return a.sync(now, ReasonAssignment)
}

// ID returns the vehicle ID.
func (a *Agent) ID() string { return a.comm.ID() }

// Vehicle returns the bound vehicle.
func (a *Agent) Vehicle() fleet.Vehicle { return a.vehicle }

// Planner returns the route planner.
func (a *Agent) Planner() route.Planner { return a.planner }

// Communicator returns the communicator.
func (a *Agent) Communicator() comm.Communicator { return a.comm }

// Changed reports whether an assignment change awaits re-planning.
func (a *Agent) Changed() bool { return a.changed }

// OnRouteChanged registers fn for every route pushed to the vehicle.
func (a *Agent) OnRouteChanged(fn func(events.RouteChanged)) { a.routes.Add(fn) }

func (a *Agent) onAssignment(e events.AssignmentChanged) {
	a.changed = true
	if a.cfg.Lazy || a.err != nil {
		return
	}
	if err := a.recompute(e.Time, ReasonAssignment); err != nil {
		a.err = err
	}
}

// HandleEvent reacts to one transition of the vehicle.
func (a *Agent) HandleEvent(ev events.VehicleEvent) error {
	if err := a.takeErr(); err != nil {
		return err
	}
	if a.vehicle == nil {
		return fmt.Errorf("%w: event %s before init", model.ErrPrecondition, ev.Kind)
	}
	t := ev.Task
	switch ev.Kind {
	case events.Departing:
		return a.departing(t, ev.Time)
	case events.Rerouted:
		if !a.vehicle.Carries(t) && a.comm.IsClaimed(t) {
			return a.comm.Unclaim(t)
		}
		return nil
	case events.Unreachable:
		return a.unreachable(t, ev.Time)
	case events.LegDone:
		return a.legDone(t, ev.Time)
	default:
		return fmt.Errorf("%w: unknown vehicle event %d", model.ErrPrecondition, ev.Kind)
	}
}

func (a *Agent) departing(t *model.Task, now time.Time) error {
	switch {
	case a.vehicle.Carries(t), a.comm.IsClaimed(t):
		return nil
	case a.comm.IsAssigned(t):
		return a.comm.Claim(t)
	}
	a.log.Warnf("%s lost %s to another agent, dropping it from its route", a.ID(), t.ID)
	if err := a.planner.SetRoute(model.Without(a.planner.Route(), t)); err != nil {
		return err
	}
	return a.sync(now, ReasonLostRace)
}

func (a *Agent) unreachable(t *model.Task, now time.Time) error {
	if a.comm.IsClaimed(t) && !a.vehicle.Carries(t) {
		if err := a.comm.Unclaim(t); err != nil {
			return err
		}
	}
	a.log.Warnf("%s cannot reach %s", a.ID(), t.ID)
	if err := a.planner.SetRoute(model.Without(a.planner.Route(), t)); err != nil {
		return err
	}
	a.changed = true
	return a.sync(now, ReasonUnreachable)
}

func (a *Agent) legDone(t *model.Task, now time.Time) error {
	a.comm.Done(t)
	if a.changed || a.planner.Current() == nil || a.planner.Current().ID != t.ID {
		return a.recompute(now, ReasonLegDone)
	}
	if _, err := a.planner.Advance(now); err != nil {
		return err
	}
	return a.sync(now, ReasonLegDone)
}

// Tick applies finished background computations and performs deferred
// re-planning once the vehicle is idle.
func (a *Agent) Tick(now time.Time) error {
	if err := a.takeErr(); err != nil {
		return err
	}
	if a.vehicle == nil {
		return nil
	}
	if p, ok := a.planner.(route.Poller); ok {
		changed, err := p.Poll(now)
		if err != nil {
			return err
		}
		if changed {
			if err := a.sync(now, ReasonSolver); err != nil {
				return err
			}
		}
	}
	if a.changed && a.vehicle.Idle() {
		return a.recompute(now, ReasonAssignment)
	}
	return nil
}

// InstallRoute applies a negotiated route as is.
func (a *Agent) InstallRoute(r []*model.Task, now time.Time) error {
	if err := a.planner.SetRoute(r); err != nil {
		return err
	}
	a.changed = false
	return a.sync(now, ReasonNegotiation)
}

func (a *Agent) recompute(now time.Time, reason string) error {
	if err := a.planner.Update(a.comm.Parcels(), now); err != nil {
		return err
	}
	a.changed = false
	return a.sync(now, reason)
}

// sync pushes the planner sequence to the vehicle when they differ.
func (a *Agent) sync(now time.Time, reason string) error {
	r := a.planner.Route()
	if model.EqualRoutes(r, a.vehicle.Route()) {
		return nil
	}
	if err := a.vehicle.SetRoute(r); err != nil {
		return fmt.Errorf("push route of %s: %w", a.ID(), err)
	}
	a.log.Debugw("route pushed", map[string]any{"vehicle": a.ID(), "reason": reason, "legs": len(r)})
	a.routes.Notify(events.RouteChanged{VehicleID: a.ID(), Route: r, Reason: reason, Time: now})
	return nil
}

func (a *Agent) takeErr() error {
	err := a.err
	a.err = nil
	return err
}

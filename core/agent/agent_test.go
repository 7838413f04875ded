package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/parcelmas/core/auction"
	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/core/negotiation"
	"github.com/kilianp07/parcelmas/core/route"
	"github.com/kilianp07/parcelmas/core/solver"
	"github.com/kilianp07/parcelmas/internal/fleettest"
)

var now = fleettest.Epoch

type harness struct {
	agent   *Agent
	comm    *comm.Base
	vehicle *fleettest.Vehicle
	changes []events.RouteChanged
}

func newHarness(t *testing.T, cfg Config, p route.Planner) *harness {
	t.Helper()
	h := &harness{comm: comm.NewBase(nil), vehicle: fleettest.NewVehicle("v1", model.Point{})}
	h.comm.SetClock(func() time.Time { return now })
	h.agent = New(cfg, p, h.comm, nil)
	h.agent.OnRouteChanged(func(e events.RouteChanged) { h.changes = append(h.changes, e) })
	require.NoError(t, h.agent.Init(h.vehicle, now))
	return h
}

func (h *harness) event(kind events.VehicleEventKind, task *model.Task) events.VehicleEvent {
	return events.VehicleEvent{Kind: kind, VehicleID: h.vehicle.Name, Task: task, Time: now}
}

func (h *harness) lastReason() string {
	if len(h.changes) == 0 {
		return ""
	}
	return h.changes[len(h.changes)-1].Reason
}

func ids(route []*model.Task) []string { return model.IDs(route) }

func TestEagerAgentReplansOnAssignment(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})

	require.NoError(t, h.comm.Receive(t1))

	assert.Equal(t, []string{"t1", "t1"}, ids(h.vehicle.Route()))
	assert.False(t, h.agent.Changed())
	require.Len(t, h.changes, 1)
	assert.Equal(t, ReasonAssignment, h.lastReason())
	assert.Equal(t, "v1", h.changes[0].VehicleID)
}

func TestLazyAgentWaitsForIdleVehicle(t *testing.T) {
	h := newHarness(t, Config{Lazy: true}, route.NewClosestFirst(nil))
	h.vehicle.Moving = true
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})

	require.NoError(t, h.comm.Receive(t1))
	assert.Empty(t, h.vehicle.Route())
	assert.True(t, h.agent.Changed())

	require.NoError(t, h.agent.Tick(now))
	assert.Empty(t, h.vehicle.Route(), "moving vehicle keeps its route")

	h.vehicle.Moving = false
	require.NoError(t, h.agent.Tick(now))
	assert.Equal(t, []string{"t1", "t1"}, ids(h.vehicle.Route()))
	assert.False(t, h.agent.Changed())
}

func TestDepartingClaimsAssignedTask(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	require.NoError(t, h.comm.Receive(t1))

	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, t1)))
	assert.True(t, h.comm.IsClaimed(t1))
	assert.False(t, h.comm.IsAssigned(t1))

	// departing again towards a claimed task changes nothing
	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, t1)))
	assert.True(t, h.comm.IsClaimed(t1))
}

func TestDepartingToUnknownTaskDropsIt(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	lost := fleettest.Task("lost", model.Point{X: 1}, model.Point{X: 2})
	kept := fleettest.Task("kept", model.Point{X: 3}, model.Point{X: 4})
	require.NoError(t, h.comm.Receive(kept))
	require.NoError(t, h.agent.InstallRoute([]*model.Task{lost, kept, lost, kept}, now))

	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, lost)))

	assert.Equal(t, []string{"kept", "kept"}, ids(h.vehicle.Route()))
	assert.Equal(t, []string{"kept", "kept"}, ids(h.agent.Planner().Route()))
	assert.Equal(t, ReasonLostRace, h.lastReason())
	assert.False(t, h.comm.IsClaimed(lost))
}

func TestReroutedReleasesClaim(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	require.NoError(t, h.comm.Receive(t1))
	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, t1)))

	require.NoError(t, h.agent.HandleEvent(h.event(events.Rerouted, t1)))
	assert.False(t, h.comm.IsClaimed(t1))
	assert.True(t, h.comm.IsAssigned(t1))
}

func TestReroutedIgnoresCarriedTask(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	h.vehicle.Cargo = []*model.Task{t1}

	require.NoError(t, h.agent.HandleEvent(h.event(events.Rerouted, t1)))
	assert.False(t, h.comm.IsAssigned(t1))
	assert.False(t, h.comm.IsClaimed(t1))
}

func TestUnreachableDropsTaskAndMarksChanged(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	t2 := fleettest.Task("t2", model.Point{X: 5}, model.Point{X: 6})
	require.NoError(t, h.comm.Receive(t1))
	require.NoError(t, h.comm.Receive(t2))
	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, t1)))
	h.vehicle.Moving = true

	require.NoError(t, h.agent.HandleEvent(h.event(events.Unreachable, t1)))

	assert.False(t, h.comm.IsClaimed(t1))
	assert.True(t, h.comm.IsAssigned(t1))
	assert.Equal(t, []string{"t2", "t2"}, ids(h.vehicle.Route()))
	assert.True(t, h.agent.Changed())
	assert.Equal(t, ReasonUnreachable, h.lastReason())
}

func TestLegDoneAdvancesRoute(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	require.NoError(t, h.comm.Receive(t1))
	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, t1)))

	h.vehicle.Cargo = []*model.Task{t1}
	require.NoError(t, h.agent.HandleEvent(h.event(events.LegDone, t1)))
	assert.False(t, h.comm.IsClaimed(t1))
	assert.Empty(t, h.comm.Parcels())
	assert.Equal(t, []string{"t1"}, ids(h.vehicle.Route()))
	assert.Equal(t, "t1", h.agent.Planner().Previous().ID)

	h.vehicle.Cargo = nil
	require.NoError(t, h.agent.HandleEvent(h.event(events.LegDone, t1)))
	assert.Empty(t, h.vehicle.Route())
	assert.Len(t, h.agent.Planner().History(), 2)
}

func TestLazyLegDoneRecomputesPendingChanges(t *testing.T) {
	h := newHarness(t, Config{Lazy: true}, route.NewClosestFirst(nil))
	h.vehicle.Moving = true
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	t2 := fleettest.Task("t2", model.Point{X: 2}, model.Point{X: 3})
	require.NoError(t, h.agent.InstallRoute([]*model.Task{t1, t1}, now))
	require.NoError(t, h.comm.Receive(t1))
	require.NoError(t, h.agent.HandleEvent(h.event(events.Departing, t1)))
	require.NoError(t, h.comm.Receive(t2))
	assert.Equal(t, []string{"t1", "t1"}, ids(h.vehicle.Route()))

	h.vehicle.Cargo = []*model.Task{t1}
	require.NoError(t, h.agent.HandleEvent(h.event(events.LegDone, t1)))

	assert.ElementsMatch(t, []string{"t1", "t2", "t2"}, ids(h.vehicle.Route()))
	assert.False(t, h.agent.Changed())
}

func TestInstallRouteClearsPendingChange(t *testing.T) {
	h := newHarness(t, Config{Lazy: true}, route.NewClosestFirst(nil))
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	require.NoError(t, h.comm.Receive(t1))
	require.True(t, h.agent.Changed())

	require.NoError(t, h.agent.InstallRoute([]*model.Task{t1, t1}, now))
	assert.False(t, h.agent.Changed())
	assert.Equal(t, ReasonNegotiation, h.lastReason())

	// installing the same route again does not notify
	require.NoError(t, h.agent.InstallRoute([]*model.Task{t1, t1}, now))
	assert.Len(t, h.changes, 1)
}

func TestAssignmentFailureSurfacesOnNextCall(t *testing.T) {
	h := newHarness(t, Config{}, route.NewClosestFirst(nil))
	boom := errors.New("vehicle offline")
	h.vehicle.SetRouteErr = boom
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})

	require.NoError(t, h.comm.Receive(t1))
	assert.ErrorIs(t, h.agent.Tick(now), boom)
	assert.NoError(t, h.agent.Tick(now), "error is reported once")
}

func TestPreconditions(t *testing.T) {
	a := New(Config{}, route.NewClosestFirst(nil), comm.NewBase(nil), nil)
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 2})
	err := a.HandleEvent(events.VehicleEvent{Kind: events.LegDone, Task: t1, Time: now})
	assert.ErrorIs(t, err, model.ErrPrecondition)
	assert.NoError(t, a.Tick(now))

	v := fleettest.NewVehicle("v1", model.Point{})
	require.NoError(t, a.Init(v, now))
	assert.ErrorIs(t, a.Init(v, now), model.ErrPrecondition)
	assert.Equal(t, "v1", a.ID())

	err = a.HandleEvent(events.VehicleEvent{Kind: events.VehicleEventKind(42), Task: t1, Time: now})
	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func TestAsyncPlannerRouteAppliedOnTick(t *testing.T) {
	p := route.NewAsyncSolverPlanner(solver.NewCheapestInsertion(solver.DefaultTravelTime()), time.Second, nil)
	t.Cleanup(func() { _ = p.Close() })
	h := newHarness(t, Config{}, p)
	t1 := fleettest.Task("t1", model.Point{X: 1}, model.Point{X: 1, Y: 1})
	t2 := fleettest.Task("t2", model.Point{X: 2}, model.Point{X: 2, Y: 1})

	require.NoError(t, h.comm.Receive(t1))
	require.NoError(t, h.comm.Receive(t2))
	assert.Len(t, h.vehicle.Route(), 4, "stale route is pushed right away")

	require.Eventually(t, func() bool {
		if err := h.agent.Tick(now); err != nil {
			return false
		}
		return !p.Pending()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, ids(p.Route()), ids(h.vehicle.Route()))
	counts := model.Counts(h.vehicle.Route())
	assert.Equal(t, 2, counts["t1"])
	assert.Equal(t, 2, counts["t2"])
}

func negotiatingAgent(t *testing.T, g *negotiation.Group, id string, pos model.Point) (*Agent, *negotiation.Bidder, *fleettest.Vehicle) {
	t.Helper()
	obj := solver.DefaultTravelTime()
	b := negotiation.NewBidder(comm.NewInsertionBidder(solver.NewCheapestInsertion(obj), obj, time.Second, nil), g, time.Second, nil)
	b.SetClock(func() time.Time { return now })
	v := fleettest.NewVehicle(id, pos)
	a := New(Config{}, route.NewClosestFirst(nil), b, nil)
	require.NoError(t, a.Init(v, now))
	return a, b, v
}

func TestReroutedTaskReentersContention(t *testing.T) {
	g := negotiation.NewGroup()
	coord := auction.NewCoordinator(auction.Config{Seed: 1}, nil, nil)
	agentA, bidA, _ := negotiatingAgent(t, g, "A", model.Point{})
	require.NoError(t, coord.Register(bidA))

	p2 := fleettest.Task("P2", model.Point{X: 9}, model.Point{X: 11})
	_, err := coord.Announce(context.Background(), p2, now)
	require.NoError(t, err)
	require.True(t, bidA.IsAssigned(p2))

	require.NoError(t, agentA.HandleEvent(events.VehicleEvent{Kind: events.Departing, VehicleID: "A", Task: p2, Time: now}))
	require.True(t, bidA.IsClaimed(p2))
	require.NoError(t, agentA.HandleEvent(events.VehicleEvent{Kind: events.Rerouted, VehicleID: "A", Task: p2, Time: now}))
	require.False(t, bidA.IsClaimed(p2))
	require.True(t, bidA.IsAssigned(p2))

	// B joins next to the abandoned pickup; the next auction negotiates
	// between A and B and P2 is contestable again
	_, bidB, vehicleB := negotiatingAgent(t, g, "B", model.Point{X: 10})
	require.NoError(t, coord.Register(bidB))
	p4 := fleettest.Task("P4", model.Point{X: 8}, model.Point{X: 12})
	_, err = coord.Announce(context.Background(), p4, now)
	require.NoError(t, err)

	assert.True(t, bidB.IsAssigned(p2))
	assert.False(t, bidA.IsAssigned(p2))
	assert.False(t, bidA.IsClaimed(p2))
	assert.Equal(t, 2, model.Counts(vehicleB.Route())["P2"])

	owners := map[string]int{}
	for _, b := range []*negotiation.Bidder{bidA, bidB} {
		assigned := model.NewTaskSet(b.Assigned()...)
		for _, c := range b.Claimed() {
			assert.False(t, assigned.Contains(c), "%s both assigned and claimed by %s", c.ID, b.ID())
			owners[c.ID]++
		}
	}
	for id, n := range owners {
		assert.Equal(t, 1, n, "%s claimed by %d agents", id, n)
	}
	assert.True(t, model.NewTaskSet(append(bidA.Assigned(), bidB.Assigned()...)...).Equal(model.NewTaskSet(p2, p4)))
}

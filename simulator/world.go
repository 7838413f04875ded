// Package simulator is a discrete time-stepped stand-in for the motion layer.
// A World owns the vehicles of a fleet and their agents, announces tasks to
// the auction coordinator when they become due, moves the vehicles and ticks
// the agents. Scenarios describe a fleet and its requests in YAML.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/parcelmas/core/agent"
	"github.com/kilianp07/parcelmas/core/auction"
	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/model"
	coremqtt "github.com/kilianp07/parcelmas/core/mqtt"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

// ErrUnfinished is returned when tasks remain undelivered after the maximum
// simulated duration.
var ErrUnfinished = errors.New("simulation did not deliver every task in time")

// Config configures the tick loop.
type Config struct {
	Tick            time.Duration `json:"tick"`
	MaxDuration     time.Duration `json:"max_duration"`
	CheckInvariants bool          `json:"check_invariants"`
	// RealTime paces the steps on the wall clock.
	RealTime bool `json:"real_time"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 24 * time.Hour
	}
}

// Validate checks the tick against the maximum duration.
func (c Config) Validate() error {
	if c.Tick <= 0 || c.MaxDuration < c.Tick {
		return fmt.Errorf("simulation tick %s must be positive and below max_duration %s", c.Tick, c.MaxDuration)
	}
	return nil
}

type clocked interface {
	SetClock(func() time.Time)
}

type member struct {
	vehicle *Vehicle
	agent   *agent.Agent
	// driven is the distance of the vehicle at its previous delivery.
	driven float64
}

// World runs one fleet.
type World struct {
	cfg   Config
	log   logger.Logger
	coord *auction.Coordinator
	sink  metrics.MetricsSink

	runID string
	start time.Time
	now   time.Time

	members []*member
	byID    map[string]*member

	due     []*model.Task
	open    map[string]*model.Task
	source  coremqtt.TaskSource
	routes  *eventbus.TypedBus[events.RouteChanged]
	counter counters
}

type counters struct {
	tasks        int
	delivered    int
	auctions     int
	negotiations int
	routeChanges int
	tardiness    time.Duration
	delays       []float64
}

// NewWorld returns an empty world whose clock starts at start.
func NewWorld(cfg Config, start time.Time, coord *auction.Coordinator, sink metrics.MetricsSink, log logger.Logger) *World {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &World{
		cfg:   cfg,
		log:   logger.OrNop(log),
		coord: coord,
		sink:  sink,
		runID: uuid.NewString(),
		start: start,
		now:   start,
		byID:  make(map[string]*member),
		open:  make(map[string]*model.Task),
	}
}

// RunID identifies the run in logs and exported metrics.
func (w *World) RunID() string { return w.runID }

// Now returns the simulated time.
func (w *World) Now() time.Time { return w.now }

// SetTaskSource adds tasks received at run time, announced on the step after
// they arrive.
func (w *World) SetTaskSource(src coremqtt.TaskSource) { w.source = src }

// SetRouteBus publishes every route pushed to a vehicle on bus.
func (w *World) SetRouteBus(bus *eventbus.TypedBus[events.RouteChanged]) { w.routes = bus }

// Add binds a to v and registers its communicator with the coordinator.
func (w *World) Add(v *Vehicle, a *agent.Agent) error {
	if _, ok := w.byID[v.ID()]; ok {
		return fmt.Errorf("%w: vehicle %s added twice", model.ErrPrecondition, v.ID())
	}
	bidder, ok := a.Communicator().(comm.Bidder)
	if !ok {
		return fmt.Errorf("%w: communicator of %s cannot bid", model.ErrPrecondition, v.ID())
	}
	if c, ok := a.Communicator().(clocked); ok {
		c.SetClock(w.Now)
	}
	m := &member{vehicle: v, agent: a}
	v.SetHandler(func(ev events.VehicleEvent) error { return w.handle(m, ev) })
	a.OnRouteChanged(w.onRoute)
	if err := a.Init(v, w.now); err != nil {
		return err
	}
	if err := w.coord.Register(bidder); err != nil {
		return err
	}
	w.members = append(w.members, m)
	w.byID[v.ID()] = m
	return nil
}

// Agents returns the agents in insertion order.
func (w *World) Agents() []*agent.Agent {
	out := make([]*agent.Agent, len(w.members))
	for i, m := range w.members {
		out[i] = m.agent
	}
	return out
}

// Schedule queues tasks for announcement at their Announced time.
func (w *World) Schedule(tasks ...*model.Task) {
	w.due = append(w.due, tasks...)
	sort.SliceStable(w.due, func(i, j int) bool { return w.due[i].Announced.Before(w.due[j].Announced) })
}

// RecordNegotiation counts a negotiation and forwards it to the sink.
func (w *World) RecordNegotiation(ev metrics.NegotiationEvent) error {
	w.counter.negotiations++
	if rec, ok := w.sink.(metrics.NegotiationRecorder); ok {
		return rec.RecordNegotiation(ev)
	}
	return nil
}

func (w *World) onRoute(e events.RouteChanged) {
	w.counter.routeChanges++
	if w.routes != nil {
		w.routes.Publish(e)
	}
}

func (w *World) handle(m *member, ev events.VehicleEvent) error {
	if ev.Kind == events.LegDone && ev.Leg == model.Delivery {
		w.deliver(m, ev)
	}
	return m.agent.HandleEvent(ev)
}

func (w *World) deliver(m *member, ev events.VehicleEvent) {
	t := ev.Task
	delete(w.open, t.ID)
	w.counter.delivered++
	delay := ev.Time.Sub(t.Announced)
	lateness := t.DeliveryWindow.Lateness(ev.Time.Add(-t.DeliveryDuration))
	w.counter.delays = append(w.counter.delays, delay.Seconds())
	w.counter.tardiness += lateness
	driven := m.vehicle.Distance()
	dist := driven - m.driven
	m.driven = driven

	w.log.Debugw("task delivered", map[string]any{
		"vehicle":  m.vehicle.ID(),
		"task":     t.ID,
		"delay_s":  delay.Seconds(),
		"late_s":   lateness.Seconds(),
		"distance": dist,
	})
	if rec, ok := w.sink.(metrics.DeliveryRecorder); ok {
		if err := rec.RecordDelivery(metrics.DeliveryEvent{
			VehicleID: m.vehicle.ID(),
			TaskID:    t.ID,
			Delay:     delay,
			Lateness:  lateness,
			Distance:  dist,
			Time:      ev.Time,
		}); err != nil {
			w.log.Warnf("delivery of %s not recorded: %v", t.ID, err)
		}
	}
}

// Step announces the tasks due now, moves every vehicle by one tick and then
// ticks every agent.
func (w *World) Step(ctx context.Context) error {
	if w.source != nil {
		for _, t := range w.source.Drain() {
			t.Announced = w.now
			w.Schedule(t)
		}
	}
	for len(w.due) > 0 && !w.due[0].Announced.After(w.now) {
		t := w.due[0]
		w.due = w.due[1:]
		if err := w.announce(ctx, t); err != nil {
			return err
		}
	}

	from := w.now
	for _, m := range w.members {
		if err := m.vehicle.Step(from, w.cfg.Tick); err != nil {
			return fmt.Errorf("step %s: %w", m.vehicle.ID(), err)
		}
	}
	w.now = from.Add(w.cfg.Tick)
	for _, m := range w.members {
		if err := m.agent.Tick(w.now); err != nil {
			return fmt.Errorf("tick %s: %w", m.agent.ID(), err)
		}
		if err := m.vehicle.Flush(w.now); err != nil {
			return fmt.Errorf("tick %s: %w", m.agent.ID(), err)
		}
	}
	if w.cfg.CheckInvariants {
		return w.Check()
	}
	return nil
}

func (w *World) announce(ctx context.Context, t *model.Task) error {
	if _, ok := w.open[t.ID]; ok {
		w.log.Warnf("task %s announced twice, ignoring the repeat", t.ID)
		return nil
	}
	w.open[t.ID] = t
	w.counter.tasks++
	res, err := w.coord.Announce(ctx, t, w.now)
	if err != nil {
		return fmt.Errorf("announce %s: %w", t.ID, err)
	}
	w.counter.auctions++
	w.log.Debugf("%s won %s at %s", res.Winner.ID(), t.ID, w.now.Format(time.TimeOnly))
	return nil
}

// Done reports whether every scheduled task was delivered. A world fed by a
// task source never finishes on its own.
func (w *World) Done() bool {
	return w.source == nil && len(w.due) == 0 && len(w.open) == 0
}

// Run steps the world until it is done, ctx is canceled or the maximum
// duration elapsed. It stops on the first error and always returns the
// statistics gathered so far.
func (w *World) Run(ctx context.Context) (Stats, error) {
	w.log.Infof("run %s started with %d vehicles and %d scheduled tasks", w.runID, len(w.members), len(w.due))
	var pace <-chan time.Time
	if w.cfg.RealTime {
		ticker := time.NewTicker(w.cfg.Tick)
		defer ticker.Stop()
		pace = ticker.C
	}
	for !w.Done() {
		if w.now.Sub(w.start) >= w.cfg.MaxDuration {
			left := len(w.open) + len(w.due)
			if left == 0 {
				return w.finish(), nil
			}
			return w.finish(), fmt.Errorf("%w: %d tasks left after %s", ErrUnfinished, left, w.cfg.MaxDuration)
		}
		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
		if err := ctx.Err(); err != nil {
			if w.source != nil {
				return w.finish(), nil
			}
			return w.finish(), err
		}
		if err := w.Step(ctx); err != nil {
			return w.finish(), err
		}
	}
	return w.finish(), nil
}

func (w *World) finish() Stats {
	s := w.Stats()
	w.log.Infof("run %s: %d/%d tasks delivered, distance %.1f, mean delay %s, tardiness %s, %d auctions, %d negotiations, %d route changes",
		s.RunID, s.Delivered, s.Tasks, s.Distance, s.MeanDelay, s.Tardiness, s.Auctions, s.Negotiations, s.RouteChanges)
	if rec, ok := w.sink.(metrics.RunSummaryRecorder); ok {
		if err := rec.RecordRunSummary(s.Summary(w.now)); err != nil {
			w.log.Warnf("run summary not recorded: %v", err)
		}
	}
	return s
}

// Package negotiation extends auction winners with a pairwise exchange: the
// winner and its nearest peer pool their assigned tasks with the new one and
// let the solver split the pool between them.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/core/solver"
)

const defaultBudget = 500 * time.Millisecond

// errInstall marks failures after the assigned sets were already swapped.
var errInstall = errors.New("negotiation: install route")

// Installer applies a negotiated route to an agent without recomputing it.
type Installer interface {
	InstallRoute(route []*model.Task, now time.Time) error
}

// Group is the set of negotiation bidders that may pair with each other.
type Group struct {
	mu      sync.Mutex
	members []*Bidder
}

// NewGroup returns an empty group.
func NewGroup() *Group { return &Group{} }

// Members returns the members in joining order.
func (g *Group) Members() []*Bidder {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Bidder(nil), g.members...)
}

func (g *Group) join(b *Bidder) {
	g.mu.Lock()
	g.members = append(g.members, b)
	g.mu.Unlock()
}

// Bidder bids like its insertion bidder and negotiates every task it wins.
type Bidder struct {
	*comm.InsertionBidder
	group     *Group
	budget    time.Duration
	recorder  metrics.NegotiationRecorder
	installer Installer
	log       logger.Logger
}

// NewBidder wraps base and joins g. A zero budget selects the default.
func NewBidder(base *comm.InsertionBidder, g *Group, budget time.Duration, log logger.Logger) *Bidder {
	if budget <= 0 {
		budget = defaultBudget
	}
	b := &Bidder{InsertionBidder: base, group: g, budget: budget, log: logger.OrNop(log)}
	g.join(b)
	return b
}

// SetInstaller sets the agent receiving negotiated routes.
func (b *Bidder) SetInstaller(inst Installer) { b.installer = inst }

// SetRecorder sets where negotiation outcomes are recorded.
func (b *Bidder) SetRecorder(rec metrics.NegotiationRecorder) { b.recorder = rec }

// Receive negotiates t with the nearest peer. Without a peer the task is
// simply assigned and subscribers are notified.
func (b *Bidder) Receive(t *model.Task) error {
	peer := b.nearestPeer()
	if peer == nil || b.installer == nil || peer.installer == nil {
		return b.InsertionBidder.Receive(t)
	}
	if b.IsAssigned(t) || b.IsClaimed(t) || peer.IsAssigned(t) || peer.IsClaimed(t) {
		return fmt.Errorf("%w: task %s already allocated", model.ErrPrecondition, t.ID)
	}

	now := b.Now()
	start := time.Now()
	moved, pool, err := b.negotiate(peer, t, now)
	ev := metrics.NegotiationEvent{
		Initiator: b.ID(),
		Peer:      peer.ID(),
		Tasks:     pool,
		Moved:     moved,
		Success:   err == nil,
		Duration:  time.Since(start),
		Time:      now,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	b.record(ev)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrConsistency), errors.Is(err, errInstall):
		return err
	default:
		b.log.Warnf("negotiation of %s between %s and %s failed, keeping the auction result: %v", t.ID, b.ID(), peer.ID(), err)
		return b.InsertionBidder.Receive(t)
	}
}

// nearestPeer returns the initialized member closest to b, ties broken by ID.
func (b *Bidder) nearestPeer() *Bidder {
	if b.Vehicle() == nil {
		return nil
	}
	pos := b.Vehicle().Position()
	var peers []*Bidder
	for _, m := range b.group.Members() {
		if m != b && m.Vehicle() != nil {
			peers = append(peers, m)
		}
	}
	if len(peers) == 0 {
		return nil
	}
	sort.SliceStable(peers, func(i, j int) bool {
		di := model.Distance(pos, peers[i].Vehicle().Position())
		dj := model.Distance(pos, peers[j].Vehicle().Position())
		if di != dj {
			return di < dj
		}
		return peers[i].ID() < peers[j].ID()
	})
	return peers[0]
}

// negotiate solves the joint problem and installs both routes. It returns
// the number of tasks that changed owner and the size of the pool.
func (b *Bidder) negotiate(peer *Bidder, t *model.Task, now time.Time) (int, int, error) {
	before := map[string]string{}
	pool := model.NewTaskSet(t)
	for _, m := range []*Bidder{b, peer} {
		for _, a := range m.Available() {
			pool.Add(a)
			before[a.ID] = m.ID()
		}
	}
	p := solver.Problem{
		Vehicles: []solver.VehicleState{
			solver.StateOf(b.Vehicle(), b.Claimed()),
			solver.StateOf(peer.Vehicle(), peer.Claimed()),
		},
		Available: pool.Slice(),
		Now:       now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.budget)
	defer cancel()
	routes, err := b.Solver().Solve(ctx, p)
	if err != nil {
		return 0, pool.Len(), fmt.Errorf("solve: %w", err)
	}
	if err := solver.Validate(p, routes); err != nil {
		return 0, pool.Len(), err
	}

	assigned := make([][]*model.Task, 2)
	union := model.NewTaskSet()
	for i, m := range []*Bidder{b, peer} {
		for _, task := range model.Distinct(routes[i]) {
			if m.Vehicle().Carries(task) || m.IsClaimed(task) {
				continue
			}
			if !union.Add(task) {
				return 0, pool.Len(), fmt.Errorf("%w: task %s assigned to both %s and %s", model.ErrConsistency, task.ID, b.ID(), peer.ID())
			}
			assigned[i] = append(assigned[i], task)
		}
	}
	if !union.Equal(pool) {
		return 0, pool.Len(), fmt.Errorf("%w: negotiated assignment of %s and %s does not partition the pool", model.ErrConsistency, b.ID(), peer.ID())
	}

	b.ReplaceAssigned(assigned[0])
	peer.ReplaceAssigned(assigned[1])
	if err := b.installer.InstallRoute(routes[0], now); err != nil {
		return 0, pool.Len(), fmt.Errorf("%w of %s: %w", errInstall, b.ID(), err)
	}
	if err := peer.installer.InstallRoute(routes[1], now); err != nil {
		return 0, pool.Len(), fmt.Errorf("%w of %s: %w", errInstall, peer.ID(), err)
	}

	moved := 0
	for i, m := range []*Bidder{b, peer} {
		for _, task := range assigned[i] {
			if owner, ok := before[task.ID]; ok && owner != m.ID() {
				moved++
			}
		}
	}
	b.log.Debugw("negotiation settled", map[string]any{
		"task":      t.ID,
		"initiator": b.ID(),
		"peer":      peer.ID(),
		"pool":      pool.Len(),
		"moved":     moved,
	})
	return moved, pool.Len(), nil
}

func (b *Bidder) record(ev metrics.NegotiationEvent) {
	if b.recorder == nil {
		return
	}
	if err := b.recorder.RecordNegotiation(ev); err != nil {
		b.log.Warnf("record negotiation: %v", err)
	}
}

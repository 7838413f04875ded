// Package auction allocates announced tasks to the fleet. Every registered
// bidder is asked for one bid; the lowest bid wins and near ties are broken
// with the coordinator's own random generator.
package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/parcelmas/core/auction/logging"
	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

var (
	// ErrNoBidders is returned when a task is announced to an empty fleet.
	ErrNoBidders = errors.New("auction: no bidders registered")
	// ErrInvalidBid excludes a bidder that returned NaN.
	ErrInvalidBid = errors.New("auction: bid is not a number")
)

// DefaultEpsilon is the tolerance under which two bids are considered equal.
const DefaultEpsilon = 1e-4

// Config configures a coordinator.
type Config struct {
	Seed    int64   `json:"seed"`
	Epsilon float64 `json:"epsilon"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Epsilon <= 0 {
		c.Epsilon = DefaultEpsilon
	}
}

// Result is the outcome of one auction.
type Result struct {
	Task   *model.Task
	Winner comm.Bidder
	// Bids is empty when the task went to the only bidder without bidding.
	Bids map[string]float64
	// Tied lists the bidders within epsilon of the best bid, in registration
	// order.
	Tied     []string
	Excluded map[string]error
}

// Coordinator runs the auctions of one fleet.
type Coordinator struct {
	epsilon float64
	log     logger.Logger
	sink    metrics.MetricsSink
	runID   string

	mu      sync.Mutex
	rng     *rand.Rand
	bidders []comm.Bidder
	ids     map[string]bool
	store   logging.Store
	bus     *eventbus.TypedBus[events.AuctionEvent]
	settled int
}

// NewCoordinator returns a coordinator whose tie breaks are drawn from a
// generator seeded with cfg.Seed.
func NewCoordinator(cfg Config, sink metrics.MetricsSink, log logger.Logger) *Coordinator {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Coordinator{
		epsilon: cfg.Epsilon,
		log:     logger.OrNop(log),
		sink:    sink,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		ids:     make(map[string]bool),
	}
}

// SetLogStore configures the store used to persist auction outcomes.
func (c *Coordinator) SetLogStore(store logging.Store, runID string) {
	c.mu.Lock()
	c.store, c.runID = store, runID
	c.mu.Unlock()
}

// SetBus configures the bus on which every outcome is published.
func (c *Coordinator) SetBus(bus *eventbus.TypedBus[events.AuctionEvent]) {
	c.mu.Lock()
	c.bus = bus
	c.mu.Unlock()
}

// Register adds an initialized bidder.
func (c *Coordinator) Register(b comm.Bidder) error {
	if b == nil || b.ID() == "" {
		return fmt.Errorf("%w: bidder must be initialized before registration", model.ErrPrecondition)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids[b.ID()] {
		return fmt.Errorf("%w: bidder %s registered twice", model.ErrPrecondition, b.ID())
	}
	c.ids[b.ID()] = true
	c.bidders = append(c.bidders, b)
	return nil
}

// Bidders returns the registered bidders in registration order.
func (c *Coordinator) Bidders() []comm.Bidder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]comm.Bidder(nil), c.bidders...)
}

// Settled returns the number of auctions that found a winner.
func (c *Coordinator) Settled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Announce auctions t and hands it to the winner. A bidder whose bid fails is
// left out of the auction. The error of the winner's Receive is returned.
func (c *Coordinator) Announce(ctx context.Context, t *model.Task, now time.Time) (Result, error) {
	start := time.Now()
	bidders := c.Bidders()
	res := Result{Task: t, Bids: map[string]float64{}, Excluded: map[string]error{}}
	switch len(bidders) {
	case 0:
		return res, fmt.Errorf("%w: cannot allocate %s", ErrNoBidders, t.ID)
	case 1:
		res.Winner = bidders[0]
		res.Tied = []string{bidders[0].ID()}
	default:
		if err := c.collect(ctx, bidders, t, now, &res); err != nil {
			return res, err
		}
		winner, err := c.pick(bidders, &res)
		if err != nil {
			return res, err
		}
		res.Winner = winner
	}

	if err := res.Winner.Receive(t); err != nil {
		return res, fmt.Errorf("auction %s: winner %s: %w", t.ID, res.Winner.ID(), err)
	}
	c.mu.Lock()
	c.settled++
	c.mu.Unlock()
	c.log.Debugw("auction settled", map[string]any{
		"task":    t.ID,
		"winner":  res.Winner.ID(),
		"bidders": len(res.Bids),
		"tied":    len(res.Tied),
	})
	c.record(ctx, res, now, time.Since(start))
	return res, nil
}

func (c *Coordinator) collect(ctx context.Context, bidders []comm.Bidder, t *model.Task, now time.Time, res *Result) error {
	var errs []error
	for _, b := range bidders {
		bidStart := time.Now()
		v, err := b.Bid(ctx, t, now)
		bidDuration.Observe(time.Since(bidStart).Seconds())
		if err == nil && math.IsNaN(v) {
			err = fmt.Errorf("bidder %s: %w", b.ID(), ErrInvalidBid)
		}
		if err != nil {
			bidsTotal.WithLabelValues("error").Inc()
			c.log.Warnf("bidder %s failed to bid on %s: %v", b.ID(), t.ID, err)
			res.Excluded[b.ID()] = err
			errs = append(errs, err)
			continue
		}
		bidsTotal.WithLabelValues("ok").Inc()
		res.Bids[b.ID()] = v
	}
	if len(res.Bids) == 0 {
		return fmt.Errorf("auction %s: every bid failed: %w", t.ID, errors.Join(errs...))
	}
	return nil
}

// pick selects the winner among the bidders within epsilon of the best bid.
// Equal infinite bids form a tie class of their own.
func (c *Coordinator) pick(bidders []comm.Bidder, res *Result) (comm.Bidder, error) {
	values := make([]float64, 0, len(res.Bids))
	for _, v := range res.Bids {
		values = append(values, v)
	}
	best := floats.Min(values)
	var tied []comm.Bidder
	for _, b := range bidders {
		if v, ok := res.Bids[b.ID()]; ok && (v == best || v-best <= c.epsilon) {
			tied = append(tied, b)
			res.Tied = append(res.Tied, b.ID())
		}
	}
	switch len(tied) {
	case 0:
		return nil, fmt.Errorf("%w: auction %s has no best bid", model.ErrConsistency, res.Task.ID)
	case 1:
		return tied[0], nil
	}
	tiesTotal.Inc()
	c.mu.Lock()
	i := c.rng.Intn(len(tied))
	c.mu.Unlock()
	return tied[i], nil
}

func (c *Coordinator) record(ctx context.Context, res Result, now time.Time, took time.Duration) {
	winner := res.Winner.ID()
	if err := c.sink.RecordAuction(metrics.AuctionEvent{
		TaskID:   res.Task.ID,
		Winner:   winner,
		Bids:     res.Bids,
		Tied:     len(res.Tied),
		Duration: took,
		Time:     now,
	}); err != nil {
		c.log.Warnf("record auction %s: %v", res.Task.ID, err)
	}

	c.mu.Lock()
	store, bus, runID := c.store, c.bus, c.runID
	c.mu.Unlock()
	if store != nil {
		rec := logging.Record{
			RunID:     runID,
			Timestamp: now,
			TaskID:    res.Task.ID,
			Bids:      res.Bids,
			Tied:      res.Tied,
			Winner:    winner,
		}
		if len(res.Excluded) > 0 {
			rec.Excluded = make(map[string]string, len(res.Excluded))
			for id, err := range res.Excluded {
				rec.Excluded[id] = err.Error()
			}
		}
		if err := store.Append(ctx, rec); err != nil {
			c.log.Warnf("persist auction %s: %v", res.Task.ID, err)
		}
	}
	if bus != nil {
		bus.Publish(events.AuctionEvent{TaskID: res.Task.ID, Winner: winner, Bids: res.Bids, Tied: res.Tied, Time: now})
	}
}

// Close releases the log store.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}

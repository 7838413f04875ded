package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/parcelmas/core/auction/logging"
	"github.com/kilianp07/parcelmas/core/comm"
	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/internal/eventbus"
	"github.com/kilianp07/parcelmas/internal/fleettest"
)

type fixedBidder struct {
	*comm.Base
	bid   float64
	err   error
	calls int
}

func (b *fixedBidder) Bid(context.Context, *model.Task, time.Time) (float64, error) {
	b.calls++
	return b.bid, b.err
}

func newBidder(t *testing.T, id string, bid float64) *fixedBidder {
	t.Helper()
	b := &fixedBidder{Base: comm.NewBase(nil), bid: bid}
	require.NoError(t, b.Init(fleettest.NewVehicle(id, model.Point{})))
	return b
}

type auctionSink struct {
	metrics.NopSink
	events []metrics.AuctionEvent
}

func (s *auctionSink) RecordAuction(ev metrics.AuctionEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func resetMetrics(t *testing.T) {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { ResetMetrics(nil) })
}

func task(id string) *model.Task {
	return fleettest.Task(id, model.Point{}, model.Point{X: 1})
}

func TestNoBidders(t *testing.T) {
	c := NewCoordinator(Config{Seed: 1}, nil, nil)
	_, err := c.Announce(context.Background(), task("p1"), fleettest.Epoch)
	require.ErrorIs(t, err, ErrNoBidders)
}

func TestSingleBidderSkipsBidding(t *testing.T) {
	resetMetrics(t)
	c := NewCoordinator(Config{Seed: 1}, nil, nil)
	b := newBidder(t, "v1", 5)
	require.NoError(t, c.Register(b))

	res, err := c.Announce(context.Background(), task("p1"), fleettest.Epoch)
	require.NoError(t, err)
	assert.Equal(t, 0, b.calls)
	assert.Same(t, b, res.Winner)
	assert.True(t, b.IsAssigned(res.Task))
	assert.Empty(t, res.Bids)
}

func TestLowestBidWins(t *testing.T) {
	resetMetrics(t)
	sink := &auctionSink{}
	c := NewCoordinator(Config{Seed: 1}, sink, nil)
	bidders := []*fixedBidder{newBidder(t, "v1", 3), newBidder(t, "v2", 1), newBidder(t, "v3", 2)}
	for _, b := range bidders {
		require.NoError(t, c.Register(b))
	}

	p := task("p1")
	res, err := c.Announce(context.Background(), p, fleettest.Epoch)
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Winner.ID())
	assert.Equal(t, []string{"v2"}, res.Tied)
	for _, b := range bidders {
		assert.Equal(t, 1, b.calls, b.ID())
		assert.Equal(t, b.ID() == "v2", b.IsAssigned(p), b.ID())
	}
	require.Len(t, sink.events, 1)
	assert.Equal(t, "v2", sink.events[0].Winner)
	assert.Len(t, sink.events[0].Bids, 3)
	assert.Equal(t, 1, c.Settled())
	assert.Equal(t, 3.0, testutil.ToFloat64(bidsTotal.WithLabelValues("ok")))
}

func TestWinnerWithinEpsilon(t *testing.T) {
	resetMetrics(t)
	for seed := int64(0); seed < 20; seed++ {
		c := NewCoordinator(Config{Seed: seed}, nil, nil)
		bids := map[string]float64{"v1": 1.00005, "v2": 1.0, "v3": 1.001}
		for _, id := range []string{"v1", "v2", "v3"} {
			require.NoError(t, c.Register(newBidder(t, id, bids[id])))
		}
		res, err := c.Announce(context.Background(), task(fmt.Sprintf("p%d", seed)), fleettest.Epoch)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"v1", "v2"}, res.Tied)
		assert.LessOrEqual(t, bids[res.Winner.ID()]-1.0, DefaultEpsilon)
	}
	assert.Equal(t, 20.0, testutil.ToFloat64(tiesTotal))
}

func TestTieBreakIsReproducible(t *testing.T) {
	resetMetrics(t)
	run := func() []string {
		c := NewCoordinator(Config{Seed: 99}, nil, nil)
		for i := 1; i <= 4; i++ {
			require.NoError(t, c.Register(newBidder(t, fmt.Sprintf("v%d", i), 1)))
		}
		var winners []string
		for i := 0; i < 10; i++ {
			res, err := c.Announce(context.Background(), task(fmt.Sprintf("p%d", i)), fleettest.Epoch)
			require.NoError(t, err)
			winners = append(winners, res.Winner.ID())
		}
		return winners
	}
	assert.Equal(t, run(), run())
}

func TestInfiniteBidsTie(t *testing.T) {
	resetMetrics(t)
	c := NewCoordinator(Config{Seed: 5}, nil, nil)
	for _, id := range []string{"v1", "v2", "v3"} {
		require.NoError(t, c.Register(newBidder(t, id, math.Inf(1))))
	}

	winners := map[string]bool{}
	for i := 0; i < 20; i++ {
		res, err := c.Announce(context.Background(), task(fmt.Sprintf("p%d", i)), fleettest.Epoch)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "v2", "v3"}, res.Tied)
		winners[res.Winner.ID()] = true
	}
	assert.Greater(t, len(winners), 1)
}

func TestNaNBidIsExcluded(t *testing.T) {
	resetMetrics(t)
	c := NewCoordinator(Config{Seed: 1}, nil, nil)
	bad := newBidder(t, "v1", math.NaN())
	good := newBidder(t, "v2", 5)
	require.NoError(t, c.Register(bad))
	require.NoError(t, c.Register(good))

	res, err := c.Announce(context.Background(), task("p1"), fleettest.Epoch)
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Winner.ID())
	require.Contains(t, res.Excluded, "v1")
	assert.ErrorIs(t, res.Excluded["v1"], ErrInvalidBid)

	good.bid = math.NaN()
	_, err = c.Announce(context.Background(), task("p2"), fleettest.Epoch)
	require.ErrorIs(t, err, ErrInvalidBid)
	assert.False(t, bad.IsAssigned(task("p2")))
}

func TestFailingBidderIsExcluded(t *testing.T) {
	resetMetrics(t)
	c := NewCoordinator(Config{Seed: 1}, nil, nil)
	broken := newBidder(t, "v1", 0)
	broken.err = errors.New("solver down")
	ok := newBidder(t, "v2", 10)
	require.NoError(t, c.Register(broken))
	require.NoError(t, c.Register(ok))

	res, err := c.Announce(context.Background(), task("p1"), fleettest.Epoch)
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Winner.ID())
	assert.Contains(t, res.Excluded, "v1")

	ok.err = errors.New("also down")
	_, err = c.Announce(context.Background(), task("p2"), fleettest.Epoch)
	require.Error(t, err)
}

func TestReceiveErrorIsReturned(t *testing.T) {
	resetMetrics(t)
	c := NewCoordinator(Config{Seed: 1}, nil, nil)
	b := newBidder(t, "v1", 0)
	require.NoError(t, c.Register(b))
	p := task("p1")
	_, err := c.Announce(context.Background(), p, fleettest.Epoch)
	require.NoError(t, err)
	_, err = c.Announce(context.Background(), p, fleettest.Epoch)
	require.ErrorIs(t, err, model.ErrPrecondition)
}

func TestRegisterPreconditions(t *testing.T) {
	c := NewCoordinator(Config{}, nil, nil)
	require.ErrorIs(t, c.Register(&fixedBidder{Base: comm.NewBase(nil)}), model.ErrPrecondition)
	b := newBidder(t, "v1", 0)
	require.NoError(t, c.Register(b))
	require.ErrorIs(t, c.Register(b), model.ErrPrecondition)
}

func TestOutcomeIsPersistedAndPublished(t *testing.T) {
	resetMetrics(t)
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "auctions.jsonl"))
	require.NoError(t, err)
	bus := eventbus.NewTyped[events.AuctionEvent]()
	sub := bus.Subscribe()

	c := NewCoordinator(Config{Seed: 1}, nil, nil)
	c.SetLogStore(store, "run-1")
	c.SetBus(bus)
	require.NoError(t, c.Register(newBidder(t, "v1", 2)))
	require.NoError(t, c.Register(newBidder(t, "v2", 1)))

	_, err = c.Announce(context.Background(), task("p1"), fleettest.Epoch)
	require.NoError(t, err)

	recs, err := store.Query(context.Background(), logging.Query{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "v2", recs[0].Winner)

	select {
	case ev := <-sub:
		assert.Equal(t, "p1", ev.TaskID)
		assert.Equal(t, "v2", ev.Winner)
	case <-time.After(time.Second):
		t.Fatal("auction event not published")
	}
	require.NoError(t, c.Close())
}

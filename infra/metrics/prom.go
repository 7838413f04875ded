package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
)

// PromSink records fleet events in Prometheus metrics.
type PromSink struct {
	auctions     *prometheus.CounterVec
	tied         prometheus.Histogram
	negotiations *prometheus.CounterVec
	moved        prometheus.Counter
	deliveries   *prometheus.CounterVec
	delay        prometheus.Histogram
	routes       *prometheus.CounterVec
	delivered    prometheus.Gauge
}

// NewPromSink registers the fleet metrics on the default registerer. The
// HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. Collectors already
// registered by an earlier sink are reused. A nil registerer defaults to the
// global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.auctions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_auctions_total",
		Help: "Settled auctions by winning vehicle",
	}, []string{"winner"})); err != nil {
		return nil, err
	}
	if s.tied, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_auction_tied_bidders",
		Help:    "Size of the tie class of each auction",
		Buckets: prometheus.LinearBuckets(1, 1, 5),
	})); err != nil {
		return nil, err
	}
	if s.negotiations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_negotiations_total",
		Help: "Pairwise negotiations by outcome",
	}, []string{"success"})); err != nil {
		return nil, err
	}
	if s.moved, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_negotiation_moved_tasks_total",
		Help: "Tasks that changed vehicle during negotiations",
	})); err != nil {
		return nil, err
	}
	if s.deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_deliveries_total",
		Help: "Completed deliveries by vehicle",
	}, []string{"vehicle_id", "on_time"})); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_delivery_delay_seconds",
		Help:    "Time between task announcement and delivery",
		Buckets: prometheus.ExponentialBuckets(30, 2, 10),
	})); err != nil {
		return nil, err
	}
	if s.routes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_route_changes_total",
		Help: "Routes pushed to vehicles by reason",
	}, []string{"vehicle_id", "reason"})); err != nil {
		return nil, err
	}
	if s.delivered, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_run_delivered_tasks",
		Help: "Tasks delivered by the last finished run",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAuction counts the auction and observes its tie class.
func (s *PromSink) RecordAuction(ev coremetrics.AuctionEvent) error {
	s.auctions.WithLabelValues(ev.Winner).Inc()
	if ev.Tied > 0 {
		s.tied.Observe(float64(ev.Tied))
	}
	return nil
}

func (s *PromSink) RecordNegotiation(ev coremetrics.NegotiationEvent) error {
	s.negotiations.WithLabelValues(strconv.FormatBool(ev.Success)).Inc()
	s.moved.Add(float64(ev.Moved))
	return nil
}

func (s *PromSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.deliveries.WithLabelValues(ev.VehicleID, strconv.FormatBool(ev.Lateness == 0)).Inc()
	s.delay.Observe(ev.Delay.Seconds())
	return nil
}

func (s *PromSink) RecordRouteChange(ev coremetrics.RouteChangeEvent) error {
	s.routes.WithLabelValues(ev.VehicleID, ev.Reason).Inc()
	return nil
}

func (s *PromSink) RecordRunSummary(sum coremetrics.RunSummary) error {
	s.delivered.Set(float64(sum.Delivered))
	return nil
}

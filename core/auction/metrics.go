package auction

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	bidsTotal   *prometheus.CounterVec
	tiesTotal   prometheus.Counter
	bidDuration prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram) {
	bids := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Bids requested from bidders by outcome",
		},
		[]string{"outcome"},
	)
	ties := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_ties_total",
			Help: "Auctions settled by a random draw between tied bidders",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auction_bid_duration_seconds",
			Help:    "Time spent computing one bid",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
	return bids, ties, dur
}

func init() {
	bidsTotal, tiesTotal, bidDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers auction metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(bidsTotal, tiesTotal, bidDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	bidsTotal, tiesTotal, bidDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

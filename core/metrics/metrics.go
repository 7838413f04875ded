package metrics

import "time"

// AuctionEvent describes one settled auction.
type AuctionEvent struct {
	TaskID string
	Winner string
	// Bids holds the bid of every bidder that answered. It is empty when the
	// task went to a single bidder without bidding.
	Bids     map[string]float64
	Tied     int
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records fleet events for observability purposes.
type MetricsSink interface {
	RecordAuction(ev AuctionEvent) error
}

// NegotiationEvent describes one pairwise negotiation.
type NegotiationEvent struct {
	Initiator string
	Peer      string
	Tasks     int
	// Moved counts the tasks that changed agent.
	Moved    int
	Success  bool
	Error    string
	Duration time.Duration
	Time     time.Time
}

// NegotiationRecorder records negotiations.
type NegotiationRecorder interface {
	RecordNegotiation(ev NegotiationEvent) error
}

// DeliveryEvent is emitted when a vehicle completes the delivery leg of a
// task.
type DeliveryEvent struct {
	VehicleID string
	TaskID    string
	// Delay is the time between announcement and delivery.
	Delay     time.Duration
	Lateness  time.Duration
	Distance  float64
	Time      time.Time
}

// DeliveryRecorder records deliveries.
type DeliveryRecorder interface {
	RecordDelivery(ev DeliveryEvent) error
}

// RouteChangeEvent is emitted when an agent pushes a new route.
type RouteChangeEvent struct {
	VehicleID string
	Reason    string
	Legs      int
	Time      time.Time
}

// RouteChangeRecorder records route changes.
type RouteChangeRecorder interface {
	RecordRouteChange(ev RouteChangeEvent) error
}

// RunSummary aggregates a finished run.
type RunSummary struct {
	RunID        string
	Tasks        int
	Delivered    int
	Distance     float64
	Tardiness    time.Duration
	MeanDelay    time.Duration
	Auctions     int
	Negotiations int
	RouteChanges int
	Simulated    time.Duration
	Time         time.Time
}

// RunSummaryRecorder records run summaries.
type RunSummaryRecorder interface {
	RecordRunSummary(s RunSummary) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAuction(AuctionEvent) error         { return nil }
func (NopSink) RecordNegotiation(NegotiationEvent) error { return nil }
func (NopSink) RecordDelivery(DeliveryEvent) error       { return nil }
func (NopSink) RecordRouteChange(RouteChangeEvent) error { return nil }
func (NopSink) RecordRunSummary(RunSummary) error        { return nil }

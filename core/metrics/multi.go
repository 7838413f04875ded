package metrics

// MultiSink fans events out to several sinks. Optional recorders are only
// called on the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAuction forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordAuction(ev AuctionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAuction(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordNegotiation(ev NegotiationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(NegotiationRecorder); ok {
			if err := rec.RecordNegotiation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordDelivery(ev DeliveryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DeliveryRecorder); ok {
			if err := rec.RecordDelivery(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordRouteChange(ev RouteChangeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RouteChangeRecorder); ok {
			if err := rec.RecordRouteChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordRunSummary(sum RunSummary) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RunSummaryRecorder); ok {
			if err := rec.RecordRunSummary(sum); err != nil {
				return err
			}
		}
	}
	return nil
}

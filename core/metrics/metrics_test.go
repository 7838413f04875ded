package metrics

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/parcelmas/core/factory"
)

type countingSink struct {
	auctions, deliveries int
	err                  error
}

func (c *countingSink) RecordAuction(AuctionEvent) error {
	c.auctions++
	return c.err
}

func (c *countingSink) RecordDelivery(DeliveryEvent) error {
	c.deliveries++
	return nil
}

type auctionsOnly struct{ n int }

func (a *auctionsOnly) RecordAuction(AuctionEvent) error {
	a.n++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	s1, s2 := &countingSink{}, &auctionsOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordAuction(AuctionEvent{TaskID: "p1"}); err != nil {
		t.Fatalf("record auction: %v", err)
	}
	if err := m.RecordDelivery(DeliveryEvent{TaskID: "p1"}); err != nil {
		t.Fatalf("record delivery: %v", err)
	}
	if err := m.RecordNegotiation(NegotiationEvent{}); err != nil {
		t.Fatalf("record negotiation: %v", err)
	}
	if s1.auctions != 1 || s1.deliveries != 1 || s2.n != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1, s2 := &countingSink{err: boom}, &auctionsOnly{}
	if err := NewMultiSink(s1, s2).RecordAuction(AuctionEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.n != 0 {
		t.Fatalf("second sink should not be called")
	}
}

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*MultiSink)
	if !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks, got %T", s)
	}
	if _, err := NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	found := false
	for _, n := range MetricsSinkTypes() {
		found = found || n == "nop"
	}
	if !found {
		t.Fatalf("nop sink not listed in %v", MetricsSinkTypes())
	}
}

func TestConfigDecode(t *testing.T) {
	var fromYAML Config
	data := "sinks:\n  - type: nop\nprometheus_addr: \":9090\"\n"
	if err := yaml.Unmarshal([]byte(data), &fromYAML); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if len(fromYAML.Sinks) != 1 || fromYAML.Sinks[0].Type != "nop" {
		t.Fatalf("unexpected sinks %+v", fromYAML.Sinks)
	}

	var fromJSON Config
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"nop"}],"prometheus_addr":":9090"}`), &fromJSON); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if fromJSON.PrometheusAddr != ":9090" {
		t.Fatalf("unexpected addr %q", fromJSON.PrometheusAddr)
	}
}

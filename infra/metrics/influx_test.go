package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSinkRecordAuction(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.AuctionEvent{
		TaskID:   "p1",
		Winner:   "v2",
		Bids:     map[string]float64{"v1": 4.5, "v2": 1.25},
		Tied:     1,
		Duration: 2 * time.Millisecond,
		Time:     now,
	}
	if err := sink.RecordAuction(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("auction").
		AddTag("task_id", "p1").
		AddTag("winner", "v2").
		AddField("bidders", 2).
		AddField("tied", 1).
		AddField("best_bid", 1.25).
		AddField("duration_ms", 2.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := bodies()
	if len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSinkRecordDelivery(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.DeliveryEvent{VehicleID: "v1", TaskID: "p1", Delay: 90 * time.Second, Distance: 12.5, Time: now}
	if err := sink.RecordDelivery(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("delivery").
		AddTag("vehicle_id", "v1").
		AddTag("task_id", "p1").
		AddField("delay_s", 90.0).
		AddField("lateness_s", 0.0).
		AddField("distance", 12.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if got := bodies(); len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxSink writes fleet events to an InfluxDB instance using the official
// client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// when the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAuction writes one point per auction.
func (s *InfluxSink) RecordAuction(ev coremetrics.AuctionEvent) error {
	best, first := 0.0, true
	for _, b := range ev.Bids {
		if first || b < best {
			best, first = b, false
		}
	}
	p := write.NewPointWithMeasurement("auction").
		AddTag("task_id", ev.TaskID).
		AddTag("winner", ev.Winner).
		AddField("bidders", len(ev.Bids)).
		AddField("tied", ev.Tied).
		AddField("best_bid", round3(best)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordNegotiation(ev coremetrics.NegotiationEvent) error {
	p := write.NewPointWithMeasurement("negotiation").
		AddTag("initiator", ev.Initiator).
		AddTag("peer", ev.Peer).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("tasks", ev.Tasks).
		AddField("moved", ev.Moved).
		AddField("error", ev.Error).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	p := write.NewPointWithMeasurement("delivery").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("task_id", ev.TaskID).
		AddField("delay_s", round3(ev.Delay.Seconds())).
		AddField("lateness_s", round3(ev.Lateness.Seconds())).
		AddField("distance", round3(ev.Distance)).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordRouteChange(ev coremetrics.RouteChangeEvent) error {
	p := write.NewPointWithMeasurement("route_change").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("reason", ev.Reason).
		AddField("legs", ev.Legs).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordRunSummary(sum coremetrics.RunSummary) error {
	p := write.NewPointWithMeasurement("run_summary").
		AddTag("run_id", sum.RunID).
		AddField("tasks", sum.Tasks).
		AddField("delivered", sum.Delivered).
		AddField("distance", round3(sum.Distance)).
		AddField("tardiness_s", round3(sum.Tardiness.Seconds())).
		AddField("mean_delay_s", round3(sum.MeanDelay.Seconds())).
		AddField("auctions", sum.Auctions).
		AddField("negotiations", sum.Negotiations).
		AddField("route_changes", sum.RouteChanges).
		SetTime(sum.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

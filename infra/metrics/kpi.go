package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/metrics/kpi"
)

// KPISink aggregates deliveries into daily per-vehicle records and mirrors
// the running day in Prometheus gauges.
type KPISink struct {
	store     kpi.Store
	delivered *prometheus.GaugeVec
	onTime    *prometheus.GaugeVec
	distance  *prometheus.GaugeVec
}

// NewKPISink creates a sink with gauges registered on reg.
func NewKPISink(store kpi.Store, reg prometheus.Registerer) (*KPISink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &KPISink{store: store}
	var err error
	if s.delivered, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_daily_deliveries",
		Help: "Deliveries per vehicle and day",
	}, []string{"vehicle_id", "day"})); err != nil {
		return nil, err
	}
	if s.onTime, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_daily_on_time_rate",
		Help: "Share of deliveries within their window per vehicle and day",
	}, []string{"vehicle_id", "day"})); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_daily_distance",
		Help: "Distance driven for deliveries per vehicle and day",
	}, []string{"vehicle_id", "day"})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordAuction is a no-op; auctions carry no delivery indicator.
func (s *KPISink) RecordAuction(coremetrics.AuctionEvent) error { return nil }

// RecordDelivery accumulates the delivery and refreshes the gauges of its day.
func (s *KPISink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	rec := kpi.Record{
		VehicleID: ev.VehicleID,
		Date:      ev.Time,
		Delivered: 1,
		Distance:  ev.Distance,
		Tardiness: ev.Lateness,
	}
	if ev.Lateness == 0 {
		rec.OnTime = 1
	}
	if err := s.store.Add(rec); err != nil {
		return err
	}
	records, err := s.store.Query(ev.VehicleID, ev.Time, ev.Time)
	if err != nil || len(records) == 0 {
		return err
	}
	r := records[0]
	day := kpi.Day(r.Date).Format("2006-01-02")
	s.delivered.WithLabelValues(ev.VehicleID, day).Set(float64(r.Delivered))
	s.onTime.WithLabelValues(ev.VehicleID, day).Set(r.OnTimeRate())
	s.distance.WithLabelValues(ev.VehicleID, day).Set(r.Distance)
	return nil
}

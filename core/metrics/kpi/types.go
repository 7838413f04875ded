// Package kpi aggregates delivery indicators per vehicle and day.
package kpi

import "time"

// Record aggregates the deliveries of a vehicle over one day.
type Record struct {
	VehicleID string
	Date      time.Time
	Delivered int
	OnTime    int
	Distance  float64
	Tardiness time.Duration
}

// OnTimeRate returns the share of deliveries made within their window.
func (r Record) OnTimeRate() float64 {
	if r.Delivered == 0 {
		return 0
	}
	return float64(r.OnTime) / float64(r.Delivered)
}

// MeanTardiness returns the average lateness per delivery.
func (r Record) MeanTardiness() time.Duration {
	if r.Delivered == 0 {
		return 0
	}
	return r.Tardiness / time.Duration(r.Delivered)
}

package simulator

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/parcelmas/core/metrics"
)

// Stats summarizes a run.
type Stats struct {
	RunID        string
	Tasks        int
	Delivered    int
	Distance     float64
	Tardiness    time.Duration
	MeanDelay    time.Duration
	MaxDelay     time.Duration
	StdDevDelay  time.Duration
	Auctions     int
	Negotiations int
	RouteChanges int
	Simulated    time.Duration
}

// Stats returns the statistics gathered so far.
func (w *World) Stats() Stats {
	distances := make([]float64, len(w.members))
	for i, m := range w.members {
		distances[i] = m.vehicle.Distance()
	}
	s := Stats{
		RunID:        w.runID,
		Tasks:        w.counter.tasks,
		Delivered:    w.counter.delivered,
		Distance:     floats.Sum(distances),
		Tardiness:    w.counter.tardiness,
		Auctions:     w.counter.auctions,
		Negotiations: w.counter.negotiations,
		RouteChanges: w.counter.routeChanges,
		Simulated:    w.now.Sub(w.start),
	}
	if d := w.counter.delays; len(d) > 0 {
		mean, std := stat.MeanStdDev(d, nil)
		s.MeanDelay = seconds(mean)
		s.MaxDelay = seconds(floats.Max(d))
		if len(d) > 1 {
			s.StdDevDelay = seconds(std)
		}
	}
	return s
}

// Summary converts s into the exported run summary.
func (s Stats) Summary(at time.Time) metrics.RunSummary {
	return metrics.RunSummary{
		RunID:        s.RunID,
		Tasks:        s.Tasks,
		Delivered:    s.Delivered,
		Distance:     s.Distance,
		Tardiness:    s.Tardiness,
		MeanDelay:    s.MeanDelay,
		Auctions:     s.Auctions,
		Negotiations: s.Negotiations,
		RouteChanges: s.RouteChanges,
		Simulated:    s.Simulated,
		Time:         at,
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// Package logging persists auction outcomes for later inspection.
package logging

import (
	"context"
	"time"
)

// Record captures one settled auction.
type Record struct {
	RunID     string             `json:"run_id"`
	Timestamp time.Time          `json:"timestamp"`
	TaskID    string             `json:"task_id"`
	Bids      map[string]float64 `json:"bids"`
	Tied      []string           `json:"tied"`
	Winner    string             `json:"winner"`
	// Excluded maps bidders whose bid failed to the error.
	Excluded map[string]string `json:"excluded,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	TaskID    string
	VehicleID string
	RunID     string
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Match reports whether rec satisfies q. A vehicle matches when it won or
// took part in the auction.
func (q Query) Match(rec Record) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.TaskID != "" && rec.TaskID != q.TaskID {
		return false
	}
	if q.RunID != "" && rec.RunID != q.RunID {
		return false
	}
	if q.VehicleID != "" && rec.Winner != q.VehicleID {
		if _, ok := rec.Bids[q.VehicleID]; !ok {
			return false
		}
	}
	return true
}

package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/parcelmas/core/metrics/kpi"
)

func TestSQLiteStoreAccumulates(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kpi.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := kpi.Record{VehicleID: "v1", Date: day.Add(time.Duration(i) * time.Hour), Delivered: 1, OnTime: i % 2, Distance: 2, Tardiness: time.Second}
		if err := store.Add(rec); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	recs, err := store.Query("v1", day, day)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.Delivered != 3 || r.OnTime != 1 || r.Distance != 6 || r.Tardiness != 3*time.Second {
		t.Fatalf("unexpected record %+v", r)
	}
	if !r.Date.Equal(day) {
		t.Fatalf("unexpected day %s", r.Date)
	}
}

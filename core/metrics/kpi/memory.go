package kpi

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.VehicleID] == nil {
		s.data[r.VehicleID] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.VehicleID][d]
	if rec == nil {
		rec = &Record{VehicleID: r.VehicleID, Date: d}
		s.data[r.VehicleID][d] = rec
	}
	rec.Delivered += r.Delivered
	rec.OnTime += r.OnTime
	rec.Distance += r.Distance
	rec.Tardiness += r.Tardiness
	return nil
}

// Query returns the records of vehicleID between start and end inclusive,
// oldest first.
func (s *MemoryStore) Query(vehicleID string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end = Day(start), Day(end)
	var res []Record
	for d, r := range s.data[vehicleID] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

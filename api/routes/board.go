// Package routes serves the latest route of every vehicle over HTTP.
package routes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

// Entry is the route last installed on one vehicle. Tasks lists the task of
// every remaining leg in visiting order.
type Entry struct {
	VehicleID string    `json:"vehicle_id"`
	Tasks     []string  `json:"tasks"`
	Reason    string    `json:"reason"`
	Changes   int       `json:"changes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Board keeps the latest route of each vehicle.
type Board struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewBoard() *Board {
	return &Board{entries: make(map[string]Entry)}
}

// Set records a route change.
func (b *Board) Set(ev events.RouteChanged) {
	tasks := make([]string, len(ev.Route))
	for i, t := range ev.Route {
		tasks[i] = t.ID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.entries[ev.VehicleID]
	b.entries[ev.VehicleID] = Entry{
		VehicleID: ev.VehicleID,
		Tasks:     tasks,
		Reason:    ev.Reason,
		Changes:   prev.Changes + 1,
		UpdatedAt: ev.Time,
	}
}

// List returns the entries sorted by vehicle. An empty vehicleID selects
// every vehicle.
func (b *Board) List(vehicleID string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, len(b.entries))
	for id, e := range b.entries {
		if vehicleID != "" && id != vehicleID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// Watch feeds the board from bus until ctx is canceled or the bus closed. It
// returns once the subscription is registered.
func (b *Board) Watch(ctx context.Context, bus *eventbus.TypedBus[events.RouteChanged]) {
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				b.Set(ev)
			}
		}
	}()
}

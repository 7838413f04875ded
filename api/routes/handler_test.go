package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

func routeEvent(vehicle, reason string, ids ...string) events.RouteChanged {
	route := make([]*model.Task, len(ids))
	for i, id := range ids {
		route[i] = &model.Task{ID: id}
	}
	return events.RouteChanged{VehicleID: vehicle, Route: route, Reason: reason, Time: time.Now()}
}

func list(t *testing.T, h http.Handler, url string) []Entry {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestRouteHandler_Basic(t *testing.T) {
	b := NewBoard()
	b.Set(routeEvent("v2", "assignment", "t1", "t1"))
	b.Set(routeEvent("v1", "assignment", "t2", "t3", "t2", "t3"))
	b.Set(routeEvent("v1", "leg_done", "t3", "t2", "t3"))

	out := list(t, NewRouteHandler(b), "/api/routes")
	if len(out) != 2 || out[0].VehicleID != "v1" || out[1].VehicleID != "v2" {
		t.Fatalf("unexpected output %#v", out)
	}
	if out[0].Changes != 2 || out[0].Reason != "leg_done" || len(out[0].Tasks) != 3 {
		t.Fatalf("unexpected entry %#v", out[0])
	}
}

func TestRouteHandler_Filter(t *testing.T) {
	b := NewBoard()
	b.Set(routeEvent("v1", "assignment", "t1", "t1"))
	b.Set(routeEvent("v2", "assignment", "t2", "t2"))

	out := list(t, NewRouteHandler(b), "/api/routes?vehicle_id=v2")
	if len(out) != 1 || out[0].Tasks[0] != "t2" {
		t.Fatalf("unexpected filter result %#v", out)
	}
}

func TestBoardWatch(t *testing.T) {
	bus := eventbus.NewTyped[events.RouteChanged]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBoard()
	b.Watch(ctx, bus)

	bus.Publish(routeEvent("v1", "assignment", "t1", "t1"))
	deadline := time.Now().Add(time.Second)
	for len(b.List("")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("route not received")
		}
		time.Sleep(5 * time.Millisecond)
	}
	bus.Close()
}

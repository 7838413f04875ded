package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

func TestStartRoutePublisherForwardsBusEvents(t *testing.T) {
	mc := &mockClient{}
	cli := newTestClient(t, mc, Config{})
	bus := eventbus.NewTyped[events.RouteChanged]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartRoutePublisher(ctx, bus, cli)
	bus.Publish(route())
	bus.Publish(route())

	deadline := time.Now().Add(2 * time.Second)
	for mc.publishedCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d routes, want 2", mc.publishedCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartRoutePublisherIgnoresMissingParts(t *testing.T) {
	StartRoutePublisher(context.Background(), nil, nil)
}

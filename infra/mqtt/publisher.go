package mqtt

import (
	"context"

	"github.com/kilianp07/parcelmas/core/events"
	coremqtt "github.com/kilianp07/parcelmas/core/mqtt"
	"github.com/kilianp07/parcelmas/infra/logger"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

// StartRoutePublisher forwards every route published on bus to pub. It
// returns once the subscription is registered and stops when ctx is canceled
// or the bus closed. Publish failures are logged and do not stop forwarding.
func StartRoutePublisher(ctx context.Context, bus *eventbus.TypedBus[events.RouteChanged], pub coremqtt.RoutePublisher) {
	if bus == nil || pub == nil {
		return
	}
	log := logger.New("route_publisher")
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
				if _, err := pub.PublishRoute(ev); err != nil {
					log.Errorf("route of %s not published: %v", ev.VehicleID, err)
				}
			}
		}
	}()
}

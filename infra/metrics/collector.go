package metrics

import (
	"context"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/logger"
	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/internal/eventbus"
)

// StartRouteCollector records every route published on bus with the sink's
// RouteChangeRecorder. It returns once the subscription is registered and
// stops when ctx is canceled or the bus closed. Sink errors are logged.
func StartRouteCollector(ctx context.Context, bus *eventbus.TypedBus[events.RouteChanged], sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.RouteChangeRecorder)
	if !ok {
		return
	}
	log = logger.OrNop(log)
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
				if err := rec.RecordRouteChange(coremetrics.RouteChangeEvent{
					VehicleID: ev.VehicleID,
					Reason:    ev.Reason,
					Legs:      len(ev.Route),
					Time:      ev.Time,
				}); err != nil {
					log.Warnf("record route change of %s: %v", ev.VehicleID, err)
				}
			}
		}
	}()
}

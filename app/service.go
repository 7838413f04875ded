package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/parcelmas/api/routes"
	"github.com/kilianp07/parcelmas/app/plugins"
	"github.com/kilianp07/parcelmas/config"
	"github.com/kilianp07/parcelmas/core/agent"
	"github.com/kilianp07/parcelmas/core/auction"
	"github.com/kilianp07/parcelmas/core/auction/logging"
	"github.com/kilianp07/parcelmas/core/events"
	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/monitoring"
	"github.com/kilianp07/parcelmas/core/negotiation"
	"github.com/kilianp07/parcelmas/infra/logger"
	"github.com/kilianp07/parcelmas/infra/metrics"
	"github.com/kilianp07/parcelmas/infra/mqtt"
	"github.com/kilianp07/parcelmas/internal/eventbus"
	"github.com/kilianp07/parcelmas/simulator"
)

// Service wires the configured modules into a simulated fleet.
type Service struct {
	World *simulator.World

	cfg      *config.Config
	log      logger.Logger
	coord    *auction.Coordinator
	sink     coremetrics.MetricsSink
	routes   *eventbus.TypedBus[events.RouteChanged]
	auctions *eventbus.TypedBus[events.AuctionEvent]
	client   *mqtt.Client
	store    logging.Store
	board    *routes.Board
	closers  []io.Closer
}

// LoadScenario reads the configured scenario file or generates one.
func LoadScenario(cfg *config.Config) (*simulator.Scenario, error) {
	if cfg.Simulation.Scenario != "" {
		return simulator.LoadScenario(cfg.Simulation.Scenario)
	}
	return simulator.Generate(cfg.Simulation.GenerateParams()), nil
}

// New creates a Service running sc. When sc is nil the scenario is loaded
// from the configuration.
func New(cfg *config.Config, sc *simulator.Scenario) (*Service, error) {
	if cfg.Logging.Level != "" && os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", cfg.Logging.Level)
	}
	logg := logger.New("service")

	if sc == nil {
		var err error
		if sc, err = LoadScenario(cfg); err != nil {
			return nil, fmt.Errorf("scenario: %w", err)
		}
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	solv, obj, err := plugins.NewSolver(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		log:      logg,
		sink:     sink,
		routes:   eventbus.NewTyped[events.RouteChanged](),
		auctions: eventbus.NewTyped[events.AuctionEvent](),
		board:    routes.NewBoard(),
	}
	s.coord = auction.NewCoordinator(cfg.Auction, sink, logger.New("auction"))
	s.coord.SetBus(s.auctions)
	s.closers = append(s.closers, s.coord)

	s.World = simulator.NewWorld(cfg.Simulation.Config, sc.Start, s.coord, sink, logger.New("simulator"))
	s.World.SetRouteBus(s.routes)

	store, err := logging.NewStore(cfg.Logging.Store())
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("auction log: %w", err)
	}
	if store != nil {
		s.store = store
		s.coord.SetLogStore(store, s.World.RunID())
	}

	group := negotiation.NewGroup()
	for i, v := range sc.Fleet() {
		log := logger.ForAgent("agent", v.ID())
		env := plugins.Env{Index: i, Solver: solv, Objective: obj, Group: group, Recorder: s.World, Log: log}
		planner, err := plugins.NewPlanner(cfg.Planner, env)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("planner for %s: %w", v.ID(), err)
		}
		if c, ok := planner.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
		bidder, err := plugins.NewBidder(cfg.Bidder, env)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("bidder for %s: %w", v.ID(), err)
		}
		if err := s.World.Add(v, agent.New(cfg.Agent, planner, bidder, log)); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	tasks, err := sc.Requests()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("scenario: %w", err)
	}
	s.World.Schedule(tasks...)

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.client = client
		s.World.SetTaskSource(client)
	}
	logg.Infof("scenario %q: %d vehicles, %d tasks, planner %s, bidder %s",
		sc.Name, len(sc.Vehicles), len(tasks), cfg.Planner.Type, cfg.Bidder.Type)
	return s, nil
}

// Run starts the collectors and drives the simulation until it completes or
// ctx is canceled.
func (s *Service) Run(ctx context.Context) (simulator.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.StartRouteCollector(ctx, s.routes, s.sink, s.log)
	if s.client != nil {
		mqtt.StartRoutePublisher(ctx, s.routes, s.client)
	}
	s.board.Watch(ctx, s.routes)
	s.traceAuctions(ctx)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		monitoring.Go("prom-server", func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}
	if addr := s.cfg.API.Addr; addr != "" {
		monitoring.Go("api", func() {
			if err := s.serveAPI(ctx, addr); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		})
	}
	stats, err := s.World.Run(ctx)
	if err != nil {
		monitoring.Report(err, map[string]string{"run_id": stats.RunID})
	}
	return stats, err
}

func (s *Service) traceAuctions(ctx context.Context) {
	sub := s.auctions.Subscribe()
	monitoring.Go("auction-trace", func() {
		defer s.auctions.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				s.log.Debugw("auction settled", map[string]any{
					"task_id": ev.TaskID,
					"winner":  ev.Winner,
					"bids":    len(ev.Bids),
					"tied":    len(ev.Tied),
				})
			}
		}
	})
}

// Board returns the latest route of every vehicle.
func (s *Service) Board() *routes.Board { return s.board }

// Close releases the planners, the auction log, the metrics sink and the
// MQTT connection.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	switch c := s.sink.(type) {
	case io.Closer:
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	case interface{ Close() }:
		c.Close()
	}
	if s.client != nil {
		s.client.Disconnect()
	}
	s.routes.Close()
	s.auctions.Close()
	return errors.Join(errs...)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/parcelmas/app"
	"github.com/kilianp07/parcelmas/config"
	coremon "github.com/kilianp07/parcelmas/core/monitoring"
	"github.com/kilianp07/parcelmas/infra/logger"
	"github.com/kilianp07/parcelmas/infra/monitoring"
	"github.com/kilianp07/parcelmas/simulator"
)

var scenarioPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation until every task is delivered",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario file overriding simulation.scenario")
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reporter, err := monitoring.NewSentryReporter(cfg.Monitoring)
	if err != nil {
		return err
	}
	coremon.SetReporter(reporter)
	defer coremon.Flush(2 * time.Second)

	var sc *simulator.Scenario
	if scenarioPath != "" {
		if sc, err = simulator.LoadScenario(scenarioPath); err != nil {
			return err
		}
	}
	svc, err := app.New(cfg, sc)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	stats, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: delivered %d/%d, distance %.1f, tardiness %s, mean delay %s, auctions %d, negotiations %d, route changes %d\n",
		stats.RunID, stats.Delivered, stats.Tasks, stats.Distance, stats.Tardiness, stats.MeanDelay,
		stats.Auctions, stats.Negotiations, stats.RouteChanges)
	return err
}

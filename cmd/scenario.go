package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/parcelmas/simulator"
)

var genCfg simulator.GenerateConfig
var genOut string

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Scenario file commands",
}

var scenarioGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random scenario file",
	RunE:  runScenarioGenerate,
}

func init() {
	f := scenarioGenerateCmd.Flags()
	f.Int64Var(&genCfg.Seed, "seed", 1, "random seed")
	f.IntVar(&genCfg.Vehicles, "vehicles", 0, "number of vehicles")
	f.IntVar(&genCfg.Tasks, "tasks", 20, "number of tasks")
	f.Float64Var(&genCfg.Area, "area", 0, "side of the square area")
	f.DurationVar(&genCfg.Horizon, "horizon", 0, "time over which tasks are announced")
	f.StringVarP(&genOut, "output", "o", "scenario.yaml", "output file")
	scenarioCmd.AddCommand(scenarioGenerateCmd)
	rootCmd.AddCommand(scenarioCmd)
}

func runScenarioGenerate(cmd *cobra.Command, _ []string) error {
	sc := simulator.Generate(genCfg)
	if err := simulator.SaveScenario(genOut, sc); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d vehicles, %d tasks\n", genOut, len(sc.Vehicles), len(sc.Tasks))
	return err
}

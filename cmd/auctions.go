package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/parcelmas/core/auction/logging"
	"github.com/kilianp07/parcelmas/pkg/export"
)

var (
	exportFormat string
	exportQuery  logging.Query
)

var auctionsCmd = &cobra.Command{
	Use:   "auctions",
	Short: "Auction log commands",
}

var auctionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the auction records of the configured log",
	RunE:  runAuctionsExport,
}

func init() {
	f := auctionsExportCmd.Flags()
	f.StringVar(&exportFormat, "format", "csv", "output format (csv or json)")
	f.StringVar(&exportQuery.RunID, "run", "", "only records of this run")
	f.StringVar(&exportQuery.TaskID, "task", "", "only records of this task")
	f.StringVar(&exportQuery.VehicleID, "vehicle", "", "only auctions this vehicle bid in")
	auctionsCmd.AddCommand(auctionsExportCmd)
	rootCmd.AddCommand(auctionsCmd)
}

func runAuctionsExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := logging.NewStore(cfg.Logging.Store())
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no auction log configured (logging.backend)")
	}
	defer func() { _ = store.Close() }()
	records, err := store.Query(context.Background(), exportQuery)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), exportFormat, records)
}

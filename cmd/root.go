package cmd

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envPath string
)

var rootCmd = &cobra.Command{
	Use:   "parcelmas",
	Short: "Multi-agent pickup and delivery simulator",
	// Variables from the env file feed K_ overrides, LOG_LEVEL and APP_ENV.
	// Variables already set in the environment win.
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "environment file loaded when present")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

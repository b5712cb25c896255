// hydroconv converts D-Flow FM schematisations into 3Di layers and
// compacts the resulting network by merging away short channels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waterschap/hydroconv/pkg/logging"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "hydroconv",
	Short:         "D-Flow FM to 3Di schematisation converter",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "hydroconv.yaml", "job configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newCompactCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	return logging.NewJSONLogger(os.Stderr, logging.ParseLevel(logLevel))
}

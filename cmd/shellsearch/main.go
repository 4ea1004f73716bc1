package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
)

var (
	logLevel      string
	cataloguePath string

	rootCmd = &cobra.Command{
		Use:   "shellsearch",
		Short: "Exhaustive search for the best shell designs per length category",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetDefault(logger.NewText(logLevel, os.Stderr))
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cataloguePath, "catalogue", "", "module catalogue JSON (default: built-in)")
	rootCmd.AddCommand(runCmd, countCmd, serveCmd)
}

// loadCatalogue returns the catalogue at path, or the built-in one.
func loadCatalogue(path string) (*catalogue.Catalogue, error) {
	if path == "" {
		return catalogue.Default(), nil
	}
	return catalogue.Load(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

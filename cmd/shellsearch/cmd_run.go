package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/shell-search/internal/search"
	"github.com/GoSim-25-26J-441/shell-search/pkg/config"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

var (
	searchConfigPath string
	workers          int
	jsonOutput       bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a search and print the leaderboard",
		RunE:  runSearch,
	}

	countCmd = &cobra.Command{
		Use:   "count",
		Short: "Print how many configurations a search would enumerate",
		RunE:  countConfigurations,
	}
)

func init() {
	for _, c := range []*cobra.Command{runCmd, countCmd} {
		c.Flags().StringVarP(&searchConfigPath, "config", "c", "", "search config YAML")
		_ = c.MarkFlagRequired("config")
	}
	runCmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel workers (default: config value)")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
}

func newDriver(runID string) (*search.Driver, *config.SearchConfig, error) {
	cfg, err := config.LoadSearchConfig(searchConfigPath)
	if err != nil {
		return nil, nil, err
	}
	cat, err := loadCatalogue(cataloguePath)
	if err != nil {
		return nil, nil, err
	}
	model, err := search.NewReferenceModel(cat, cfg)
	if err != nil {
		return nil, nil, err
	}
	driver, err := search.NewDriver(model, cat, cfg, search.WithRunID(runID), search.WithLogger(logger.Default))
	if err != nil {
		return nil, nil, err
	}
	return driver, cfg, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	driver, cfg, err := newDriver(utils.GenerateRunID())
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.Search.Workers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *search.Result
	if workers == 1 {
		res, err = driver.Run(ctx)
	} else {
		res, err = driver.RunParallel(ctx, workers)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("search interrupted: %w", context.Cause(ctx))
		}
		return err
	}

	if jsonOutput {
		return search.WriteJSON(cmd.OutOrStdout(), res)
	}
	return search.WriteTable(cmd.OutOrStdout(), res)
}

func countConfigurations(cmd *cobra.Command, args []string) error {
	driver, _, err := newDriver("")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), driver.Count())
	return err
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leaderhound/internal/runner"
)

var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Process many sites on a worker pool",
	Long: `Process the given URLs, or the websites file from the config when
none are given. Sites scraped within the refresh interval are skipped.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&flagProduction, "production", false, "Write results to the datastore")
	batchCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Worker pool size (0 = config default)")
	batchCmd.Flags().IntVar(&flagDelayMS, "delay", 0, "Delay between site starts in milliseconds")
	batchCmd.Flags().IntVar(&flagLimit, "limit", 0, "Process at most this many sites (0 = all)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), flagProduction, flagWorkers, time.Duration(flagDelayMS)*time.Millisecond)
	if err != nil {
		return err
	}
	defer a.close()

	sites := args
	if len(sites) == 0 {
		sites, err = loadSitesFile(a)
		if err != nil {
			return err
		}
	}
	if flagLimit > 0 && len(sites) > flagLimit {
		sites = sites[:flagLimit]
	}
	if len(sites) == 0 {
		return fmt.Errorf("%w: no sites to process", errUsage)
	}

	a.logger.Info("batch starting",
		zap.Int("sites", len(sites)),
		zap.Bool("production", flagProduction))

	runs := a.runner.RunBatch(cmd.Context(), sites)

	succeeded := 0
	for _, run := range runs {
		if len(run.Results) > 0 {
			succeeded++
		}
	}
	a.logger.Info("batch finished",
		zap.Int("processed", len(runs)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(runs)-succeeded))

	if succeeded == 0 {
		return fmt.Errorf("no site produced results")
	}
	return nil
}

func loadSitesFile(a *app) ([]string, error) {
	return runner.LoadSites(a.cfg.Runner.WebsitesFile)
}

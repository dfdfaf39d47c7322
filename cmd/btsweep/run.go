package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/btsweep/internal/collector/binance"
	"github.com/newthinker/btsweep/internal/collector/yahoo"
	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/metrics"
	"github.com/newthinker/btsweep/internal/storage/archive"
	"github.com/newthinker/btsweep/internal/sweep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runWorkers     int
	runParallel    bool
	runResetDB     bool
	runDryRun      bool
	runPrintParams bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every scene of the configured sweep",
	RunE:  runSweep,
}

func init() {
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "worker pool size (0 = CPUs - 2)")
	runCmd.Flags().BoolVarP(&runParallel, "parallel", "p", false, "run scenes in parallel")
	runCmd.Flags().BoolVar(&runResetDB, "reset-db", false, "ask to delete the results database first")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "expand the grid without running backtests")
	runCmd.Flags().BoolVar(&runPrintParams, "print-params", false, "print the parameter set")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags lets explicit flags override the sweep section of the config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Sweep.Workers = runWorkers
	}
	if flags.Changed("parallel") {
		cfg.Sweep.MultiProcess = runParallel
	}
	if flags.Changed("reset-db") {
		cfg.Sweep.ResetDatabase = runResetDB
	}
	if flags.Changed("print-params") {
		cfg.Sweep.PrintParams = runPrintParams
	}
	if runDryRun {
		cfg.Sweep.RunTestNow = false
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := sweep.New(sweep.NewSet(cfg.Sweep), sweep.OptionsFrom(cfg), log)
	runner.RegisterCollector(yahoo.New(cfg.Data.Yahoo))
	runner.RegisterCollector(binance.New(cfg.Data.Binance))
	runner.SetIO(cmd.InOrStdin(), cmd.OutOrStdout())

	store, err := archive.New(cfg.Storage.Archive)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	if store != nil {
		runner.SetArchive(store)
		log.Info("archiving results", zap.String("type", cfg.Storage.Archive.Type))
	}

	reg := metrics.NewRegistry()
	runner.SetMetrics(reg)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics, reg, log); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	sum, err := runner.Run(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), sum)
	if errors.Is(err, context.Canceled) {
		log.Info("sweep interrupted")
	}
	return err
}

package main

import (
	"fmt"
	"os"

	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "btsweep",
	Short: "btsweep - backtest parameter sweeps",
	Long: `btsweep runs a trading strategy over every combination of a parameter
grid and records the results to SQLite, Excel workbooks and charts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup builds the logger and reads --config, or the defaults when no file
// is given. log.development in the file turns on debug logging too.
func setup() (*config.Config, *zap.Logger, error) {
	log := logger.Must(debug)

	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, log, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Log.Development && !debug {
		log = logger.Must(true)
	}
	return cfg, log, nil
}

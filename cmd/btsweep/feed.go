package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/newthinker/btsweep/internal/collector/binance"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	feedInterval string
	feedSince    time.Duration
	feedEvery    time.Duration
)

var feedCmd = &cobra.Command{
	Use:   "feed <symbol>",
	Short: "Follow a live Binance kline feed",
	Long: `feed backfills klines for a Binance symbol and then polls for new ones,
printing each completed bar and the DELAYED/LIVE status of the feed.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeed,
}

func init() {
	feedCmd.Flags().StringVar(&feedInterval, "interval", "1m", "kline interval")
	feedCmd.Flags().DurationVar(&feedSince, "since", time.Hour, "backfill window")
	feedCmd.Flags().DurationVar(&feedEvery, "every", time.Minute, "poll period")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := binance.New(cfg.Data.Binance)
	symbol := binance.Symbol(args[0])
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	err = src.Poll(ctx, symbol, binance.PollOptions{
		Interval: feedInterval,
		Since:    time.Now().Add(-feedSince),
		Every:    feedEvery,
	}, func(u binance.Update) error {
		if len(u.Bars) == 0 {
			log.Info("feed status", zap.String("symbol", symbol), zap.String("status", string(u.Status)))
			return nil
		}
		for _, b := range u.Bars {
			fmt.Fprintf(w, "%s\t%s\t%.8g\t%.8g\t%.8g\t%.8g\t%d\t%s\n",
				b.Time.Format(time.DateTime), b.Symbol, b.Open, b.High, b.Low, b.Close, b.Volume, u.Status)
		}
		return w.Flush()
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("feed %s: %w", symbol, err)
	}
	return nil
}


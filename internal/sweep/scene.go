package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newthinker/btsweep/internal/analyzer"
	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/report/chart"
	"github.com/newthinker/btsweep/internal/report/console"
	"github.com/newthinker/btsweep/internal/report/excel"
	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/newthinker/btsweep/internal/storage/archive"
	"go.uber.org/zap"
)

// outcome is what a worker hands to the consumer.
type outcome struct {
	scene      scenario.Scene
	agg        *result.Aggregate // set when the aggregate should go to the database
	hasTrades  bool
	finalValue float64
	elapsed    time.Duration
	err        error
}

// runScene runs one backtest and writes its file outputs.
func (r *Runner) runScene(ctx context.Context, sc scenario.Scene) outcome {
	defer r.metrics.WorkerBusy()()
	started := time.Now()

	sc = sc.WithTestNumber(scenario.NewTestNumber())
	out := outcome{scene: sc}
	logger := r.logger.With(zap.String("test_number", sc.TestNumber))

	res, feeds, err := r.backtest(ctx, sc, logger)
	if err != nil {
		out.err = err
		out.elapsed = time.Since(started)
		return out
	}
	out.finalValue = res.FinalValue
	out.hasTrades = result.HasTransactions(res)

	if sc.PrintFinalOutput {
		rows, _ := analysisOf[[]analyzer.TradeRow](res, analyzer.TradeList)
		r.outMu.Lock()
		console.PrintTradeList(r.out, rows)
		r.outMu.Unlock()
	}

	var agg *result.Aggregate
	if sc.SaveResult && (sc.SaveExcel || sc.SaveDB || sc.SaveTearsheet) {
		if out.hasTrades {
			agg = result.Build(res, sc, r.set.Dimensions(), logger)
			r.saveFiles(ctx, sc, agg, benchmarkOf(sc, feeds), logger)
			if sc.SaveDB {
				out.agg = agg
			}
		} else {
			logger.Info(fmt.Sprintf("%s has no transactions.", sc.TestNumber))
		}
	}

	if sc.PlotOn {
		if agg == nil {
			agg = result.Build(res, sc, r.set.Dimensions(), logger)
		}
		r.plot(ctx, sc, agg, feeds[0], logger)
	}

	if sc.PrintOn {
		r.printf("Final value %.2f\n", res.FinalValue)
	}
	out.elapsed = time.Since(started)
	return out
}

// backtest fetches the scene's feeds and runs its strategy.
func (r *Runner) backtest(ctx context.Context, sc scenario.Scene, logger *zap.Logger) (*backtest.Result, []backtest.Feed, error) {
	if sc.PrintOn {
		r.printf("Running back test: loading data from %s with trading starts on %s to %s.\nLoading data...\n",
			sc.FromDate, sc.TradeStart, sc.ToDate)
	}

	// to_date is inclusive
	start, end := sc.From(), sc.To().AddDate(0, 0, 1)
	var feeds []backtest.Feed
	for _, symbol := range []string{sc.Instrument, sc.Benchmark} {
		if symbol == "" {
			continue
		}
		bars, err := r.cache.Fetch(ctx, sc.Source, symbol, start, end, sc.Interval)
		if err != nil {
			return nil, nil, err
		}
		feeds = append(feeds, backtest.Feed{Name: symbol, Bars: bars})
	}

	strat, err := r.strategies.New(sc)
	if err != nil {
		return nil, nil, err
	}

	engine := backtest.New(backtest.Config{
		Cash: sc.InitInvestment,
		Commission: broker.CommissionInfo{
			Commission: sc.Commission,
			Margin:     sc.Margin,
			Mult:       sc.Mult,
		},
		Sizer:         &broker.Stake{},
		ExcludedDates: sc.Excluded(),
	}, logger)

	res, err := engine.Run(ctx, feeds, strat, analyzer.ForScene(sc.FullExport)...)
	if err != nil {
		return nil, nil, fmt.Errorf("running %s on %s: %w", sc.Strategy, sc.Instrument, err)
	}
	if sc.PrintOn {
		r.printf("\n\nFinal Portfolio Value: %.2f\n", res.FinalValue)
	}
	logger.Debug("backtest finished",
		zap.String("scene", sc.Instrument),
		zap.Int("trades", res.Stats.TotalTrades),
		zap.Float64("win_rate", res.Stats.WinRate),
		zap.Float64("sharpe", res.Stats.SharpeRatio),
		zap.Float64("final_value", res.FinalValue))
	return res, feeds, nil
}

// analysisOf returns the typed analysis of a named analyzer.
func analysisOf[T any](res *backtest.Result, name string) (T, bool) {
	var zero T
	a, ok := res.Analyzer(name)
	if !ok {
		return zero, false
	}
	v, ok := a.Analysis().(T)
	return v, ok
}

// saveFiles writes the workbook and tearsheet. Failures are logged; the
// database copy of the scene is still written.
func (r *Runner) saveFiles(ctx context.Context, sc scenario.Scene, agg *result.Aggregate, bench chart.Benchmark, logger *zap.Logger) {
	if !sc.SaveExcel && !sc.SaveTearsheet {
		return
	}
	if err := os.MkdirAll(sc.SavePath, 0755); err != nil {
		logger.Warn("creating save path", zap.String("path", sc.SavePath), zap.Error(err))
		return
	}

	if sc.SaveExcel {
		path, err := excel.Write(sc.SavePath, agg, sc)
		if err != nil {
			logger.Warn("writing workbook", zap.Error(err))
		} else {
			r.archiveFile(ctx, sc, path, logger)
		}
	}

	if sc.SaveTearsheet {
		path := filepath.Join(sc.SavePath, chart.TearsheetName(sc))
		if err := writeFile(path, func(f *os.File) error {
			return chart.RenderTearsheet(f, agg.Values(), bench, chart.TearsheetTitle(sc))
		}); err != nil {
			logger.Warn("writing tearsheet", zap.Error(err))
		} else {
			r.archiveFile(ctx, sc, path, logger)
		}
	}
}

// benchmarkOf returns the benchmark feed of a scene, which follows the
// master feed.
func benchmarkOf(sc scenario.Scene, feeds []backtest.Feed) chart.Benchmark {
	if sc.Benchmark == "" || len(feeds) < 2 {
		return chart.Benchmark{}
	}
	return chart.BenchmarkFromBars(sc.Benchmark, feeds[1].Bars)
}

// plot writes the dashboard and the equity curve. Candles come from the
// master feed when the ohlcv table was not exported.
func (r *Runner) plot(ctx context.Context, sc scenario.Scene, agg *result.Aggregate, master backtest.Feed, logger *zap.Logger) {
	if err := os.MkdirAll(sc.SavePath, 0755); err != nil {
		logger.Warn("creating save path", zap.String("path", sc.SavePath), zap.Error(err))
		return
	}
	data := chart.FromAggregate(agg)
	if data.Symbol == "" {
		data.Symbol = sc.Instrument
	}
	if len(data.Bars) == 0 {
		data.Bars = master.Bars
	}
	title := fmt.Sprintf("%s %s %s", sc.Strategy, sc.Instrument, sc.TestNumber)

	html := filepath.Join(sc.SavePath, fmt.Sprintf("%s-%s.html", sc.SaveName, sc.TestNumber))
	err := writeFile(html, func(f *os.File) error {
		return chart.RenderDashboard(f, data, title)
	})
	switch {
	case errors.Is(err, core.ErrNoData):
		logger.Debug("nothing to plot")
		return
	case err != nil:
		logger.Warn("writing dashboard", zap.Error(err))
	default:
		r.archiveFile(ctx, sc, html, logger)
	}

	png := filepath.Join(sc.SavePath, fmt.Sprintf("%s-%s-equity.png", sc.SaveName, sc.TestNumber))
	if err := chart.SaveEquityPNG(png, data.Values); err != nil {
		logger.Warn("writing equity curve", zap.Error(err))
		return
	}
	r.archiveFile(ctx, sc, png, logger)
}

func (r *Runner) archiveFile(ctx context.Context, sc scenario.Scene, path string, logger *zap.Logger) {
	if r.archive == nil {
		return
	}
	key := archive.Key(sc.BatchName+"-"+sc.BatchRuntime, path)
	if err := archive.PutFile(ctx, r.archive, key, path); err != nil {
		logger.Warn("archiving", zap.String("key", key), zap.Error(err))
	}
}

// writeFile creates path and removes it again when render fails.
func writeFile(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Package sweep runs every scene of a parameter grid and records the results.
package sweep

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/newthinker/btsweep/internal/collector"
	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/metrics"
	"github.com/newthinker/btsweep/internal/report/console"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/newthinker/btsweep/internal/storage/archive"
	"github.com/newthinker/btsweep/internal/storage/sqlstore"
	"github.com/newthinker/btsweep/internal/strategy"
	"github.com/newthinker/btsweep/internal/strategy/smacross"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options control one sweep.
type Options struct {
	PrintParams bool
	RunTestNow  bool
	Parallel    bool
	// Workers is the pool size in parallel mode. Zero picks DefaultWorkers.
	Workers int
	ResetDB bool
	DBPath  string
}

// OptionsFrom reads the sweep options from configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		PrintParams: cfg.Sweep.PrintParams,
		RunTestNow:  cfg.Sweep.RunTestNow,
		Parallel:    cfg.Sweep.MultiProcess,
		Workers:     cfg.Sweep.Workers,
		ResetDB:     cfg.Sweep.ResetDatabase,
		DBPath:      cfg.Storage.DBPath,
	}
}

// NewSet builds the parameter set of a sweep from configuration.
func NewSet(cfg config.SweepConfig) *scenario.Set {
	set := scenario.NewSet()
	set.Override(cfg.Params)
	set.SetDimensions(cfg.Dimensions)
	return set
}

// DefaultWorkers leaves two CPUs free, keeping at least one worker.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-2, 1)
}

// Runner is the sweep orchestrator
type Runner struct {
	opts       Options
	set        *scenario.Set
	logger     *zap.Logger
	collectors *collector.Registry
	strategies *strategy.Registry
	metrics    *metrics.Registry
	archive    archive.Storage
	cache      *dataCache

	in    io.Reader
	out   io.Writer
	outMu sync.Mutex
}

// New creates a runner for the given parameter set. The built-in strategies
// are registered.
func New(set *scenario.Set, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		opts:       opts,
		set:        set,
		logger:     logger,
		collectors: collector.NewRegistry(),
		strategies: strategy.NewRegistry(logger),
		metrics:    metrics.NewRegistry(),
		in:         os.Stdin,
		out:        os.Stdout,
	}
	r.strategies.Register(smacross.Name, smacross.Factory)
	r.cache = newDataCache(r.collectors, r.metrics, logger)
	return r
}

// RegisterCollector adds a data source
func (r *Runner) RegisterCollector(c collector.Collector) {
	r.collectors.Register(c)
}

// RegisterStrategy adds a strategy factory
func (r *Runner) RegisterStrategy(name string, f strategy.Factory) {
	r.strategies.Register(name, f)
}

// SetMetrics replaces the metrics registry.
func (r *Runner) SetMetrics(m *metrics.Registry) {
	r.metrics = m
	r.cache.metrics = m
}

// SetArchive sets where output files are copied. Nil disables archiving.
func (r *Runner) SetArchive(s archive.Storage) {
	r.archive = s
}

// SetIO replaces the terminal used for prompts and printed output.
func (r *Runner) SetIO(in io.Reader, out io.Writer) {
	r.in = in
	r.out = out
}

// printf serializes terminal output across workers.
func (r *Runner) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Scenes expands the parameter set.
func (r *Runner) Scenes() ([]scenario.Scene, error) {
	return scenario.Expand(r.set, scenario.FastBelowSlow)
}

// Run executes the sweep. Failed scenes are logged and counted. Only
// context cancellation and setup errors abort the batch.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := time.Now()

	if r.opts.ResetDB {
		if console.YesOrNo(r.in, r.out, "Do you wish to reset the database?") {
			if err := sqlstore.Reset(r.opts.DBPath); err != nil {
				return Summary{}, err
			}
			r.logger.Info("database reset", zap.String("path", r.opts.DBPath))
		}
	}

	scenes, err := r.Scenes()
	if err != nil {
		return Summary{}, err
	}
	if r.opts.PrintParams {
		r.outMu.Lock()
		console.PrintParams(r.out, printable(r.set.Values()))
		r.outMu.Unlock()
	}

	sum := Summary{Total: len(scenes)}
	if !r.opts.RunTestNow || len(scenes) == 0 {
		return sum, nil
	}
	if scenes[0].PrintOn {
		r.printf("There will be %d backtests run.\n\n", len(scenes))
	}

	var store *sqlstore.Store
	if needsDB(scenes) {
		store, err = sqlstore.Open(r.opts.DBPath, r.logger)
		if err != nil {
			return sum, err
		}
		defer store.Close()
	}

	workers := 1
	if r.opts.Parallel {
		workers = r.opts.Workers
		if workers <= 0 {
			workers = DefaultWorkers()
		}
	}
	r.logger.Info("starting sweep",
		zap.Int("scenes", len(scenes)),
		zap.Int("workers", workers))

	outcomes := make(chan outcome, workers)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		r.consume(ctx, outcomes, store, &sum, started)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sc := range scenes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := r.runScene(gctx, sc)
			outcomes <- out
			if out.err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	runErr := g.Wait()
	close(outcomes)
	<-consumed

	sum.Elapsed = time.Since(started)
	if ctx.Err() != nil {
		runErr = ctx.Err()
	}

	if store != nil {
		batch := sqlstore.Batch{
			Name:       scenes[0].BatchName,
			Runtime:    scenes[0].BatchRuntime,
			StartedAt:  started,
			Scenes:     sum.Total,
			Completed:  sum.Completed,
			WithTrades: sum.WithTrades,
			Failed:     sum.Failed,
			FinalValue: sum.FinalValue,
			Elapsed:    sum.Elapsed,
		}
		// recorded even when cancelled
		if err := store.RecordBatch(context.WithoutCancel(ctx), batch); err != nil {
			r.logger.Warn("recording batch", zap.Error(err))
		}
	}

	r.logger.Info("sweep finished",
		zap.Int("completed", sum.Completed),
		zap.Int("with_trades", sum.WithTrades),
		zap.Int("failed", sum.Failed),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, runErr
}

// printable drops excluded_dates, which is not a swept parameter.
func printable(params []scenario.Pair) []scenario.Pair {
	out := make([]scenario.Pair, 0, len(params))
	for _, p := range params {
		if p.Name != "excluded_dates" {
			out = append(out, p)
		}
	}
	return out
}

func needsDB(scenes []scenario.Scene) bool {
	for _, sc := range scenes {
		if sc.SaveResult && sc.SaveDB {
			return true
		}
	}
	return false
}

// consume is the only writer to the database.
func (r *Runner) consume(ctx context.Context, outcomes <-chan outcome, store *sqlstore.Store, sum *Summary, started time.Time) {
	done := 0
	for out := range outcomes {
		done++
		switch {
		case out.err != nil:
			sum.Failed++
			r.metrics.RecordScene(metrics.StatusFailed, out.elapsed)
			if ctx.Err() == nil {
				r.logger.Error("scene failed",
					zap.String("test_number", out.scene.TestNumber),
					zap.String("scene", out.scene.Instrument),
					zap.Error(out.err))
			}
		case out.hasTrades:
			sum.Completed++
			sum.WithTrades++
			r.metrics.RecordScene(metrics.StatusCompleted, out.elapsed)
		default:
			sum.Completed++
			r.metrics.RecordScene(metrics.StatusNoTrades, out.elapsed)
		}
		if out.err == nil {
			sum.FinalValue = out.finalValue
		}

		if out.agg != nil && store != nil {
			written, err := store.Append(ctx, out.agg)
			r.metrics.RecordRows(written)
			if err != nil {
				r.logger.Warn("saving results", zap.String("test_number", out.scene.TestNumber), zap.Error(err))
			}
		}

		r.logger.Info(fmt.Sprintf("Backtests: %d / %d", done, sum.Total),
			zap.Int("with_trades", sum.WithTrades),
			zap.Duration("elapsed", time.Since(started)))
	}
}

// Summary reports a finished sweep
type Summary struct {
	Total      int
	Completed  int
	WithTrades int
	Failed     int
	// FinalValue is the final portfolio value of the last scene to finish.
	FinalValue float64
	Elapsed    time.Duration
}

// String formats the summary for the terminal.
func (s Summary) String() string {
	return fmt.Sprintf("Backtests: %d / %d, with trades %d, failed %d, final value %.2f, elapsed %.2fs",
		s.Completed, s.Total, s.WithTrades, s.Failed, s.FinalValue, s.Elapsed.Seconds())
}

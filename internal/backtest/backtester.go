package backtest

import (
	"context"
	"fmt"

	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
	"go.uber.org/zap"
)

// Config holds the account settings of a run.
type Config struct {
	Cash       float64
	Commission broker.CommissionInfo
	Sizer      broker.Sizer
	// ExcludedDates are YYYY-MM-DD dates dropped from every feed.
	ExcludedDates map[string]bool
}

// Engine runs a strategy bar by bar over one or more feeds.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an engine.
func New(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Run executes the strategy over feeds. Orders placed on one bar are matched
// against the next bar.
func (e *Engine) Run(ctx context.Context, feeds []Feed, strat Strategy, analyzers ...Analyzer) (*Result, error) {
	feeds = e.filter(feeds)
	if len(feeds) == 0 || len(feeds[0].Bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars for master feed"))
	}

	sim := broker.NewSimulator(e.cfg.Cash, e.cfg.Commission, e.cfg.Sizer)
	env := newEnv(feeds, sim, strat)

	if err := strat.Start(env); err != nil {
		return nil, fmt.Errorf("starting %s: %w", strat.Name(), err)
	}
	for _, a := range analyzers {
		a.Start(env)
	}
	minPeriod := max(strat.MinPeriod(), 1)

	var closed []broker.Trade
	for i := range feeds[0].Bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		env.index = i

		for j, f := range feeds {
			if !env.fresh(j) {
				continue
			}
			bar, _ := env.Current(j)
			ev := sim.Process(f.Name, bar, i)
			for _, o := range ev.Orders {
				strat.NotifyOrder(env, o)
				for _, a := range analyzers {
					a.NotifyOrder(env, o)
				}
			}
			for _, t := range ev.Trades {
				if t.IsClosed {
					closed = append(closed, t)
				}
				strat.NotifyTrade(env, t)
				for _, a := range analyzers {
					a.NotifyTrade(env, t)
				}
			}
			sim.Mark(f.Name, bar.Close)
		}

		cash, value := sim.Cash(), sim.Value()
		for _, a := range analyzers {
			a.NotifyCashValue(env, cash, value)
		}

		if i+1 < minPeriod {
			continue
		}
		if err := strat.Next(env); err != nil {
			return nil, fmt.Errorf("%s at %s: %w", strat.Name(), env.Now().Format(core.DateLayout), err)
		}
		for _, a := range analyzers {
			a.Next(env)
		}
	}

	master := feeds[0]
	res := &Result{
		Strategy:   strat.Name(),
		Symbol:     master.Name,
		StartDate:  master.Bars[0].Time,
		EndDate:    master.Bars[len(master.Bars)-1].Time,
		Bars:       len(master.Bars),
		FinalCash:  sim.Cash(),
		FinalValue: sim.Value(),
		Trades:     closed,
		Stats:      CalculateStats(append(closed, sim.OpenTrades()...)),
		analyzers:  analyzers,
	}
	e.logger.Debug("backtest finished",
		zap.String("strategy", res.Strategy),
		zap.String("symbol", res.Symbol),
		zap.Int("bars", res.Bars),
		zap.Int("trades", len(closed)),
		zap.Float64("final_value", res.FinalValue),
	)
	return res, nil
}

// filter drops bars on excluded dates.
func (e *Engine) filter(feeds []Feed) []Feed {
	if len(e.cfg.ExcludedDates) == 0 {
		return feeds
	}
	out := make([]Feed, len(feeds))
	for i, f := range feeds {
		bars := make([]core.OHLCV, 0, len(f.Bars))
		for _, b := range f.Bars {
			if e.cfg.ExcludedDates[b.Time.Format(core.DateLayout)] {
				continue
			}
			bars = append(bars, b)
		}
		out[i] = Feed{Name: f.Name, Bars: bars}
	}
	return out
}

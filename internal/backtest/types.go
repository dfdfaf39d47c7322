package backtest

import (
	"time"

	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
)

// Feed is a named series of bars. The first feed of a run is the master feed.
type Feed struct {
	Name string
	Bars []core.OHLCV
}

// Closes returns the feed's close prices.
func (f Feed) Closes() []float64 {
	out := make([]float64, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Close
	}
	return out
}

// Strategy trades a run. Start is called once before the first bar and may
// precompute indicators over the master feed.
type Strategy interface {
	Name() string
	Start(env *Env) error
	// MinPeriod is the number of master bars needed before Next is called.
	MinPeriod() int
	Next(env *Env) error
	NotifyOrder(env *Env, o broker.Order)
	NotifyTrade(env *Env, t broker.Trade)
}

// SignalSource is implemented by strategies that expose their signal lines.
type SignalSource interface {
	Signals() map[string][]float64
}

// Analyzer observes a run and reports a result at the end.
type Analyzer interface {
	Name() string
	Start(env *Env)
	Next(env *Env)
	NotifyOrder(env *Env, o broker.Order)
	NotifyTrade(env *Env, t broker.Trade)
	NotifyCashValue(env *Env, cash, value float64)
	Analysis() any
}

// Result holds the complete backtest output
type Result struct {
	Strategy   string
	Symbol     string
	StartDate  time.Time
	EndDate    time.Time
	Bars       int
	FinalCash  float64
	FinalValue float64
	Trades     []broker.Trade // closed trades in close order
	Stats      Stats

	analyzers []Analyzer
}

// Analyzer returns the analyzer registered under name.
func (r *Result) Analyzer(name string) (Analyzer, bool) {
	for _, a := range r.analyzers {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Analyzers returns the run's analyzers in attach order.
func (r *Result) Analyzers() []Analyzer {
	return r.analyzers
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // Percentage of profitable trades
	TotalReturn   float64 // Net return percentage
	MaxDrawdown   float64 // Largest peak-to-trough decline
	SharpeRatio   float64 // Risk-adjusted return (annualized)
}

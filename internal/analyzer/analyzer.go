// Package analyzer provides the observers attached to every backtest run.
// Each analyzer's Analysis returns a concrete type from this package.
package analyzer

import (
	"fmt"
	"sync"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
)

// Analyzer names.
const (
	Trades       = "trades"
	Drawdown     = "drawdown"
	Transactions = "transactions"
	CashMarket   = "cash_market"
	TradeList    = "trade_list"
	TradeClosed  = "trade_closed"
	OHLCV        = "ohlcv"
	Benchmark    = "benchmark"
	GlobalSignal = "global_signal"
	OrderHistory = "order_history"
)

// BaseNames are attached to every run.
var BaseNames = []string{Trades, Drawdown, Transactions, CashMarket, TradeList}

// FullNames are added when full export is on.
var FullNames = []string{TradeClosed, OHLCV, Benchmark, GlobalSignal, OrderHistory}

// Node is one key of an ordered nested analysis.
type Node struct {
	Key   string
	Value any // float64, int or Tree
}

// Tree is an ordered nested analysis.
type Tree []Node

// Flatten joins nested keys with "_" in order.
func (t Tree) Flatten() Tree {
	var out Tree
	var walk func(prefix string, t Tree)
	walk = func(prefix string, t Tree) {
		for _, n := range t {
			key := n.Key
			if prefix != "" {
				key = prefix + "_" + n.Key
			}
			if sub, ok := n.Value.(Tree); ok {
				walk(key, sub)
				continue
			}
			out = append(out, Node{Key: key, Value: n.Value})
		}
	}
	walk("", t)
	return out
}

// Get returns a flattened key's value.
func (t Tree) Get(key string) (any, bool) {
	for _, n := range t.Flatten() {
		if n.Key == key {
			return n.Value, true
		}
	}
	return nil, false
}

// base gives analyzers no-op hooks to override.
type base struct{ name string }

func (b base) Name() string { return b.name }
func (base) Start(*backtest.Env) {}
func (base) Next(*backtest.Env) {}
func (base) NotifyOrder(*backtest.Env, broker.Order) {}
func (base) NotifyTrade(*backtest.Env, broker.Trade) {}
func (base) NotifyCashValue(*backtest.Env, float64, float64) {}

// Factory creates a fresh analyzer.
type Factory func() backtest.Analyzer

// Registry maps analyzer names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in analyzers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(Trades, func() backtest.Analyzer { return NewTradeAnalyzer() })
	r.Register(Drawdown, func() backtest.Analyzer { return NewDrawDown() })
	r.Register(Transactions, func() backtest.Analyzer { return NewTransactions() })
	r.Register(CashMarket, func() backtest.Analyzer { return NewCashMarket() })
	r.Register(TradeList, func() backtest.Analyzer { return NewTradeList() })
	r.Register(TradeClosed, func() backtest.Analyzer { return NewTradeClosed() })
	r.Register(OHLCV, func() backtest.Analyzer { return NewBars(OHLCV, 0) })
	r.Register(Benchmark, func() backtest.Analyzer { return NewBars(Benchmark, 1) })
	r.Register(GlobalSignal, func() backtest.Analyzer { return NewGlobalSignal() })
	r.Register(OrderHistory, func() backtest.Analyzer { return NewOrderHistory() })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Build creates fresh analyzers by name.
func (r *Registry) Build(names ...string) ([]backtest.Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]backtest.Analyzer, 0, len(names))
	for _, n := range names {
		f, ok := r.factories[n]
		if !ok {
			return nil, core.WrapError(core.ErrAnalyzerUnknown, fmt.Errorf("%q", n))
		}
		out = append(out, f())
	}
	return out, nil
}

// Names returns the analyzer names for a run.
func Names(fullExport bool) []string {
	names := append([]string(nil), BaseNames...)
	if fullExport {
		names = append(names, FullNames...)
	}
	return names
}

var defaultRegistry = NewRegistry()

// ForScene builds the analyzer set for a run.
func ForScene(fullExport bool) []backtest.Analyzer {
	out, _ := defaultRegistry.Build(Names(fullExport)...)
	return out
}

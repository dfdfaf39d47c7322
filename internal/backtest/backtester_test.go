package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
)

var baseTime = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func makeBars(symbol string, closes ...float64) []core.OHLCV {
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{
			Symbol: symbol, Interval: "1d",
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
			Time: baseTime.AddDate(0, 0, i),
		}
	}
	return bars
}

// scriptStrategy submits market orders at fixed master bar indices.
type scriptStrategy struct {
	minPeriod int
	orders    map[int]broker.OrderSide
	nextCalls []int
	notified  []broker.Order
	trades    []broker.Trade
	failAt    int
}

func (s *scriptStrategy) Name() string { return "script" }
func (s *scriptStrategy) Start(*Env) error { return nil }
func (s *scriptStrategy) MinPeriod() int { return s.minPeriod }
func (s *scriptStrategy) NotifyOrder(_ *Env, o broker.Order) { s.notified = append(s.notified, o) }
func (s *scriptStrategy) NotifyTrade(_ *Env, t broker.Trade) { s.trades = append(s.trades, t) }

func (s *scriptStrategy) Next(env *Env) error {
	i := env.Index()
	s.nextCalls = append(s.nextCalls, i)
	if s.failAt > 0 && i == s.failAt {
		return errors.New("boom")
	}
	side, ok := s.orders[i]
	if !ok {
		return nil
	}
	_, err := env.Broker.Submit(broker.OrderRequest{
		Symbol: env.Symbol(), Side: side, Type: broker.OrderTypeMarket, Size: 10,
	}, env.Now(), i)
	return err
}

// recorder is a minimal analyzer capturing values.
type recorder struct {
	values []float64
	next   int
	orders int
	trades int
	bench  []float64
}

func (r *recorder) Name() string { return "recorder" }
func (r *recorder) Start(*Env) {}
func (r *recorder) NotifyOrder(*Env, broker.Order) { r.orders++ }
func (r *recorder) NotifyTrade(*Env, broker.Trade) { r.trades++ }
func (r *recorder) NotifyCashValue(_ *Env, _, value float64) { r.values = append(r.values, value) }
func (r *recorder) Analysis() any { return r.values }

func (r *recorder) Next(env *Env) {
	r.next++
	if b, ok := env.Current(1); ok {
		r.bench = append(r.bench, b.Close)
	}
}

func TestEngine_Run(t *testing.T) {
	feeds := []Feed{{Name: "AAPL", Bars: makeBars("AAPL", 100, 101, 102, 103, 104, 105)}}
	strat := &scriptStrategy{orders: map[int]broker.OrderSide{1: broker.OrderSideBuy, 3: broker.OrderSideSell}}
	rec := &recorder{}

	res, err := New(Config{Cash: 10000}, nil).Run(context.Background(), feeds, strat, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Strategy != "script" || res.Symbol != "AAPL" {
		t.Errorf("unexpected result identity %s/%s", res.Strategy, res.Symbol)
	}
	if res.Bars != 6 {
		t.Errorf("Bars = %d, want 6", res.Bars)
	}
	// buy at open of bar 2 (102), sell at open of bar 4 (104)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 closed trade, got %d", len(res.Trades))
	}
	if res.Trades[0].PnL != 20 {
		t.Errorf("trade PnL = %v, want 20", res.Trades[0].PnL)
	}
	if res.FinalValue != 10020 || res.FinalCash != 10020 {
		t.Errorf("final value/cash = %v/%v, want 10020", res.FinalValue, res.FinalCash)
	}
	if res.Stats.WinningTrades != 1 {
		t.Errorf("WinningTrades = %d, want 1", res.Stats.WinningTrades)
	}

	if len(rec.values) != 6 || rec.next != 6 {
		t.Errorf("recorder saw %d values and %d nexts, want 6/6", len(rec.values), rec.next)
	}
	if rec.values[2] != 10000 {
		t.Errorf("value after buy at close = %v, want 10000", rec.values[2])
	}
	if rec.orders != 2 || rec.trades != 2 {
		t.Errorf("recorder orders/trades = %d/%d, want 2/2", rec.orders, rec.trades)
	}
	if len(strat.notified) != 2 {
		t.Errorf("strategy notified %d orders, want 2", len(strat.notified))
	}

	a, ok := res.Analyzer("recorder")
	if !ok || a != rec {
		t.Error("Analyzer(recorder) lookup failed")
	}
	if _, ok := res.Analyzer("missing"); ok {
		t.Error("expected missing analyzer")
	}
}

func TestEngine_MinPeriod(t *testing.T) {
	feeds := []Feed{{Name: "X", Bars: makeBars("X", 1, 2, 3, 4, 5)}}
	strat := &scriptStrategy{minPeriod: 3}

	if _, err := New(Config{Cash: 100}, nil).Run(context.Background(), feeds, strat); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []int{2, 3, 4}
	if len(strat.nextCalls) != len(want) {
		t.Fatalf("next calls = %v, want %v", strat.nextCalls, want)
	}
	for i := range want {
		if strat.nextCalls[i] != want[i] {
			t.Errorf("next calls = %v, want %v", strat.nextCalls, want)
		}
	}
}

func TestEngine_ExcludedDates(t *testing.T) {
	feeds := []Feed{{Name: "X", Bars: makeBars("X", 1, 2, 3, 4, 5)}}
	excluded := map[string]bool{
		baseTime.AddDate(0, 0, 1).Format(core.DateLayout): true,
		baseTime.AddDate(0, 0, 3).Format(core.DateLayout): true,
	}

	res, err := New(Config{Cash: 100, ExcludedDates: excluded}, nil).Run(context.Background(), feeds, &scriptStrategy{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Bars != 3 {
		t.Errorf("Bars = %d, want 3", res.Bars)
	}
	if len(feeds[0].Bars) != 5 {
		t.Error("input feed should not be modified")
	}
}

func TestEngine_BenchmarkAlignment(t *testing.T) {
	master := makeBars("X", 1, 2, 3, 4)
	bench := []core.OHLCV{master[1], master[3]}
	bench[0].Close, bench[1].Close = 50, 60
	feeds := []Feed{{Name: "X", Bars: master}, {Name: "B", Bars: bench}}
	rec := &recorder{}

	if _, err := New(Config{Cash: 100}, nil).Run(context.Background(), feeds, &scriptStrategy{}, rec); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []float64{50, 50, 60}
	if len(rec.bench) != len(want) {
		t.Fatalf("bench = %v, want %v", rec.bench, want)
	}
	for i := range want {
		if rec.bench[i] != want[i] {
			t.Errorf("bench = %v, want %v", rec.bench, want)
		}
	}
}

func TestEngine_NoData(t *testing.T) {
	_, err := New(Config{}, nil).Run(context.Background(), []Feed{{Name: "X"}}, &scriptStrategy{})
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestEngine_StrategyError(t *testing.T) {
	feeds := []Feed{{Name: "X", Bars: makeBars("X", 1, 2, 3)}}
	_, err := New(Config{Cash: 100}, nil).Run(context.Background(), feeds, &scriptStrategy{failAt: 1})
	if err == nil {
		t.Error("expected strategy error")
	}
}

func TestEngine_ContextCancellation(t *testing.T) {
	feeds := []Feed{{Name: "X", Bars: makeBars("X", 1, 2, 3)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := New(Config{Cash: 100}, nil).Run(ctx, feeds, &scriptStrategy{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation error, got %v", err)
	}
}

func TestFeed_Closes(t *testing.T) {
	f := Feed{Bars: makeBars("X", 3, 4)}
	c := f.Closes()
	if len(c) != 2 || c[0] != 3 || c[1] != 4 {
		t.Errorf("Closes() = %v", c)
	}
}

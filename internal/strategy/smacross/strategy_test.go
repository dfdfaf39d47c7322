package smacross

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/scenario"
)

var start = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func TestSMACross_ImplementsInterfaces(t *testing.T) {
	var _ backtest.Strategy = (*SMACross)(nil)
	var _ backtest.SignalSource = (*SMACross)(nil)
}

func testScene(t *testing.T, overrides map[string]any) scenario.Scene {
	t.Helper()
	set := scenario.NewSet()
	set.Override(map[string]any{
		"sma_fast":  2,
		"sma_slow":  4,
		"from_date": start.Format(core.DateLayout),
		"to_date":   start.AddDate(0, 0, 30).Format(core.DateLayout),
	})
	set.Override(overrides)
	scenes, err := scenario.Expand(set)
	if err != nil {
		t.Fatal(err)
	}
	return scenes[0]
}

// Declining then sharp recovery: golden cross on bar 5.
// bar 4: fast (85+80)/2 = 82.5 <= slow (95+90+85+80)/4 = 87.5
// bar 5: fast (80+120)/2 = 100 > slow (90+85+80+120)/4 = 93.75
func goldenCrossFeed() backtest.Feed {
	closes := []float64{100, 95, 90, 85, 80, 120, 125, 130, 131, 132}
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{
			Symbol: "TEST", Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000, Time: start.AddDate(0, 0, i),
		}
	}
	return backtest.Feed{Name: "TEST", Bars: bars}
}

func run(t *testing.T, scene scenario.Scene) (*SMACross, *backtest.Result) {
	t.Helper()
	return runWithCash(t, scene, 10000)
}

func runWithCash(t *testing.T, scene scenario.Scene, cash float64) (*SMACross, *backtest.Result) {
	t.Helper()
	s, err := New(scene, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	eng := backtest.New(backtest.Config{Cash: cash, Sizer: &broker.Stake{}}, nil)
	res, err := eng.Run(context.Background(), []backtest.Feed{goldenCrossFeed()}, s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return s, res
}

func TestSMACross_GoldenCrossBracket(t *testing.T) {
	s, res := run(t, testScene(t, nil))

	if s.Signals()["long_buy_signal"][5] != 1 {
		t.Fatalf("expected long signal on bar 5, got %v", s.Signals()["long_buy_signal"])
	}
	// size 9000/120 = 75, entry 125, limit 129.6 gapped at 130
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.MaxSize != 75 {
		t.Errorf("MaxSize = %v, want 75", tr.MaxSize)
	}
	if tr.PnL != 375 {
		t.Errorf("PnL = %v, want 375", tr.PnL)
	}
	if res.FinalValue != 10375 {
		t.Errorf("FinalValue = %v, want 10375", res.FinalValue)
	}
	if s.Busy() {
		t.Error("bracket should be finished")
	}
}

func TestSMACross_FractionalSize(t *testing.T) {
	_, res := runWithCash(t, testScene(t, nil), 10001)

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	want := 10001 * 0.9 / 120
	if got := res.Trades[0].MaxSize; math.Abs(got-want) > 1e-9 {
		t.Errorf("MaxSize = %v, want %v (not rounded down)", got, want)
	}
	if got := res.Trades[0].PnL; math.Abs(got-want*5) > 1e-6 {
		t.Errorf("PnL = %v, want %v", got, want*5)
	}
}

func TestSMACross_TradeStart(t *testing.T) {
	scene := testScene(t, map[string]any{"trade_start": start.AddDate(0, 0, 6).Format(core.DateLayout)})
	_, res := run(t, scene)

	if len(res.Trades) != 0 {
		t.Errorf("expected no trades before trade_start, got %d", len(res.Trades))
	}
	if res.FinalValue != 10000 {
		t.Errorf("FinalValue = %v, want 10000", res.FinalValue)
	}
}

func TestSMACross_MinPeriod(t *testing.T) {
	s, err := New(testScene(t, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.MinPeriod() != 5 {
		t.Errorf("MinPeriod() = %d, want 5", s.MinPeriod())
	}
}

func TestNew_InvalidPeriods(t *testing.T) {
	scene := testScene(t, map[string]any{"sma_fast": 0})
	if _, err := New(scene, nil); !errors.Is(err, core.ErrSceneInvalid) {
		t.Errorf("expected ErrSceneInvalid, got %v", err)
	}
}

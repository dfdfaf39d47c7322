package result_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/newthinker/btsweep/internal/analyzer"
	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

type buyAt struct{ bars map[int]broker.OrderSide }

func (buyAt) Name() string { return "buy_at" }
func (buyAt) Start(*backtest.Env) error { return nil }
func (buyAt) MinPeriod() int { return 1 }
func (buyAt) NotifyOrder(*backtest.Env, broker.Order) {}
func (buyAt) NotifyTrade(*backtest.Env, broker.Trade) {}

func (s buyAt) Next(env *backtest.Env) error {
	side, ok := s.bars[env.Index()]
	if !ok {
		return nil
	}
	_, err := env.Broker.Submit(broker.OrderRequest{
		Symbol: env.Symbol(), Side: side, Type: broker.OrderTypeMarket, Size: 10,
	}, env.Now(), env.Index())
	return err
}

func run(t *testing.T, orders map[int]broker.OrderSide, fullExport bool) *backtest.Result {
	t.Helper()
	closes := []float64{100, 101, 102, 99, 104, 105}
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{Symbol: "TEST", Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10, Time: day0.AddDate(0, 0, i)}
	}
	res, err := backtest.New(backtest.Config{Cash: 10000}, nil).Run(context.Background(),
		[]backtest.Feed{{Name: "TEST", Bars: bars}}, buyAt{orders}, analyzer.ForScene(fullExport)...)
	require.NoError(t, err)
	return res
}

func roundTrip() map[int]broker.OrderSide {
	return map[int]broker.OrderSide{1: broker.OrderSideBuy, 3: broker.OrderSideSell}
}

func scene(t *testing.T, overrides map[string]any) (scenario.Scene, []string) {
	t.Helper()
	set := scenario.NewSet()
	set.Override(overrides)
	scenes, err := scenario.Expand(set)
	require.NoError(t, err)
	return scenes[0].WithTestNumber("abc123"), set.Dimensions()
}

func TestHasTransactions(t *testing.T) {
	assert.True(t, result.HasTransactions(run(t, roundTrip(), false)))
	assert.False(t, result.HasTransactions(run(t, nil, false)))
}

func TestBuild_FullExport(t *testing.T) {
	sc, dims := scene(t, nil)
	agg := result.Build(run(t, roundTrip(), true), sc, dims, nil)

	var names []string
	for _, tb := range agg.Tables {
		names = append(names, tb.Name)
	}
	want := []string{
		"trade_analysis", "drawdown", "transaction", "value", "trade_list",
		"trade", "ohlcv", "global_out", "order_history", "dimension", "quantstats",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("table names mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "abc123", agg.TestNumber)

	for _, tb := range agg.Tables {
		if tb.Name == result.TableDimension {
			continue
		}
		assert.Equal(t, "test_number", tb.Columns[0], tb.Name)
		for _, r := range tb.Rows {
			assert.Equal(t, "abc123", r[0], tb.Name)
			assert.Len(t, r, len(tb.Columns), tb.Name)
		}
	}
}

func TestBuild_BaseOnly(t *testing.T) {
	sc, dims := scene(t, nil)
	agg := result.Build(run(t, roundTrip(), false), sc, dims, nil)

	_, ok := agg.Table(result.TableOHLCV)
	assert.False(t, ok)
	_, ok = agg.Table(result.TableTradeList)
	assert.True(t, ok)
}

func TestBuild_BenchmarkSkippedWithoutBenchmark(t *testing.T) {
	sc, dims := scene(t, map[string]any{"benchmark": ""})
	agg := result.Build(run(t, roundTrip(), true), sc, dims, nil)
	_, ok := agg.Table(result.TableBenchmark)
	assert.False(t, ok)

	sc, dims = scene(t, map[string]any{"benchmark": "SPY"})
	agg = result.Build(run(t, roundTrip(), true), sc, dims, nil)
	_, ok = agg.Table(result.TableBenchmark)
	assert.True(t, ok)
}

func TestBuild_TradeAnalysisZeroFill(t *testing.T) {
	sc, dims := scene(t, nil)
	agg := result.Build(run(t, map[int]broker.OrderSide{1: broker.OrderSideBuy}, false), sc, dims, nil)

	ta, ok := agg.Table(result.TableTradeAnalysis)
	require.True(t, ok)
	for _, c := range result.TradeAnalysisColumns {
		col := ta.Column(c)
		require.Len(t, col, 1, c)
	}
	assert.Equal(t, []any{1}, ta.Column("total_total"))
	assert.Equal(t, []any{0}, ta.Column("len_short_lost_min"))
}

func TestBuild_TransactionValues(t *testing.T) {
	sc, dims := scene(t, nil)
	agg := result.Build(run(t, roundTrip(), false), sc, dims, nil)

	tx, ok := agg.Table(result.TableTransaction)
	require.True(t, ok)
	assert.Equal(t, []string{"test_number", "Date", "Units", "Price", "SID", "Ticker", "Value"}, tx.Columns)
	assert.Equal(t, []any{-1020.0, 1040.0}, tx.Column("Value"))

	tl, _ := agg.Table(result.TableTradeList)
	assert.Contains(t, tl.Columns, "pnl_pct")
	assert.Contains(t, tl.Columns, "mfe_pct")
}

func TestDimension(t *testing.T) {
	sc, _ := scene(t, map[string]any{"excluded_dates": []any{"2020-07-03", "2020-07-04"}})
	dim := result.Dimension(sc, []string{"test_number", "instrument", "excluded_dates", "sma_fast"})

	assert.Equal(t, []string{"test_number", "instrument", "excluded_dates", "sma_fast"}, dim.Columns)
	require.Len(t, dim.Rows, 1)
	assert.Equal(t, "abc123", dim.Rows[0][0])
	assert.Equal(t, "^GSPC", dim.Rows[0][1])
	assert.Equal(t, "2020-07-03, 2020-07-04", dim.Rows[0][2])
	assert.Equal(t, 20, dim.Rows[0][3])
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{nil, ""},
		{[]string{"a", "b"}, "a, b"},
		{map[string]any{"y": 2, "x": 1}, "(x, 1), (y, 2)"},
		{day0, "2021-03-01"},
		{1.5, 1.5},
	}
	for _, tt := range tests {
		if got := result.Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQuantStats(t *testing.T) {
	values := []result.ValuePoint{
		{Date: day0, Value: 100},
		{Date: day0.AddDate(0, 0, 1), Value: 110},
		{Date: day0.AddDate(0, 0, 2), Value: 99},
		{Date: day0.AddDate(0, 0, 3), Value: 121},
	}
	qs, err := result.QuantStats("t1", values)
	require.NoError(t, err)
	require.Len(t, qs.Rows, 1)

	get := func(c string) any { return qs.Column(c)[0] }
	assert.Equal(t, "t1", get("test_number"))
	assert.Equal(t, "2021-03-01", get("Start Period"))
	assert.InDelta(t, 21.0, get("Cumulative Return -pct").(float64), 1e-9)
	assert.InDelta(t, -10.0, get("Max Drawdown -pct").(float64), 1e-9)
	assert.Equal(t, 1, get("Longest DD Days"))
	assert.InDelta(t, 100*(121.0/99-1), get("Best Day -pct").(float64), 1e-9)
	assert.InDelta(t, -10.0, get("Worst Day -pct").(float64), 1e-9)
	assert.InDelta(t, 100*2.0/3, get("Win Days -pct").(float64), 1e-9)
	assert.Greater(t, get("Sharpe").(float64), 0.0)

	// returns 0.1, -0.1, 0.2222
	best := 121.0/99 - 1
	assert.InDelta(t, (0.1+best)/0.1, get("Omega").(float64), 1e-9)
	assert.InDelta(t, (0.1+best)/0.1, get("Profit Factor").(float64), 1e-9)
	assert.InDelta(t, (0.1+best)/2/0.1, get("Payoff Ratio").(float64), 1e-9)
	assert.InDelta(t, best/0.1, get("Recovery Factor").(float64), 1e-9)
	assert.InDelta(t, math.Sqrt(0.01/2), get("Ulcer Index").(float64), 1e-9)
	assert.InDelta(t, best/0.1, get("Tail Ratio").(float64), 1e-9)
	assert.Len(t, qs.Columns, len(result.QuantStatsColumns)+1)

	_, err = result.QuantStats("t1", values[:1])
	assert.Error(t, err)
}

func TestDrawdowns(t *testing.T) {
	dd := result.Drawdowns([]result.ValuePoint{{Value: 100}, {Value: 50}, {Value: 120}, {Value: 90}})
	if diff := cmp.Diff([]float64{0, -50, 0, -25}, dd); diff != "" {
		t.Errorf("Drawdowns mismatch (-want +got):\n%s", diff)
	}
}

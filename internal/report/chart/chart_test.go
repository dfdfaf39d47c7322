package chart

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

func sampleTables() []result.Table {
	ohlcv := result.Table{Name: result.TableOHLCV, Columns: []string{"test_number", "Date", "Open", "High", "Low", "Close", "Volume"}}
	value := result.Table{Name: result.TableValue, Columns: []string{"test_number", "Date", "Cash", "Value"}}
	for i := range 5 {
		d := day0.AddDate(0, 0, i)
		c := 100 + float64(i)
		ohlcv.Rows = append(ohlcv.Rows, []any{"t1", d, c - 1, c + 1, c - 2, c, int64(1000 * (i + 1))})
	}
	// written out of order on purpose
	for _, i := range []int{4, 0, 2, 1, 3} {
		value.Rows = append(value.Rows, []any{"t1", day0.AddDate(0, 0, i), 1000.0, 1000 + 10*float64(i)})
	}
	tx := result.Table{
		Name:    result.TableTransaction,
		Columns: []string{"test_number", "Date", "Units", "Price", "SID", "Ticker", "Value"},
		Rows: [][]any{
			{"t1", day0.AddDate(0, 0, 1), 5.0, 101.0, 0, "SPY", -505.0},
			{"t1", day0.AddDate(0, 0, 3), -5.0, 103.0, 0, "SPY", 515.0},
		},
	}
	return []result.Table{ohlcv, tx, value}
}

func TestFromTables(t *testing.T) {
	d := FromTables(sampleTables()...)

	assert.Equal(t, "SPY", d.Symbol)
	require.Len(t, d.Bars, 5)
	assert.Equal(t, 104.0, d.Bars[4].Close)
	assert.Equal(t, int64(5000), d.Bars[4].Volume)
	require.Len(t, d.Fills, 2)
	assert.Equal(t, -5.0, d.Fills[1].Units)
	require.Len(t, d.Values, 5)
	for i, v := range d.Values {
		assert.True(t, v.Date.Equal(day0.AddDate(0, 0, i)), "values sorted by date")
	}
}

func TestFromTables_StringDates(t *testing.T) {
	tb := result.Table{
		Name:    result.TableValue,
		Columns: []string{"test_number", "Date", "Cash", "Value"},
		Rows:    [][]any{{"t1", "2022-01-04 00:00:00", "1000", 1010.0}},
	}
	d := FromTables(tb)
	require.Len(t, d.Values, 1)
	assert.True(t, d.Values[0].Date.Equal(day0.AddDate(0, 0, 1)))
	assert.Empty(t, d.Bars)
}

func TestRenderDashboard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDashboard(&buf, FromTables(sampleTables()...), "sma sweep t1"))

	html := buf.String()
	assert.Contains(t, html, "sma sweep t1")
	assert.Contains(t, html, "candlestick")
	assert.Contains(t, html, "Portfolio value")

	err := RenderDashboard(&buf, Data{}, "empty")
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestRenderTearsheet(t *testing.T) {
	d := FromTables(sampleTables()...)

	var buf bytes.Buffer
	require.NoError(t, RenderTearsheet(&buf, d.Values, Benchmark{}, "tearsheet"))
	html := buf.String()
	assert.Contains(t, html, "Drawdown %")
	assert.Contains(t, html, "Sharpe")
	assert.NotContains(t, html, "^GSPC")

	err := RenderTearsheet(&buf, d.Values[:1], Benchmark{}, "short")
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestRenderTearsheet_Benchmark(t *testing.T) {
	d := FromTables(sampleTables()...)
	bench := BenchmarkFromBars("^GSPC", d.Bars)

	var buf bytes.Buffer
	require.NoError(t, RenderTearsheet(&buf, d.Values, bench, "with benchmark"))
	html := buf.String()
	assert.Contains(t, html, `"^GSPC"`, "benchmark series")
	// 100 -> 104 over the five bars
	assert.Contains(t, html, "^GSPC 4.00%")
}

func TestBenchmark_Rebase(t *testing.T) {
	values := []result.ValuePoint{
		{Date: day0, Value: 1000},
		{Date: day0.AddDate(0, 0, 1), Value: 1010},
		{Date: day0.AddDate(0, 0, 2), Value: 1020},
	}
	bench := Benchmark{Name: "B", Prices: []result.ValuePoint{
		{Date: day0, Value: 50},
		{Date: day0.AddDate(0, 0, 2), Value: 55},
	}}

	got := bench.rebase(values)
	require.Len(t, got, 3)
	assert.InDelta(t, 1000, got[0].Value, 1e-9)
	assert.InDelta(t, 1000, got[1].Value, 1e-9, "missing day carries the last price")
	assert.InDelta(t, 1100, got[2].Value, 1e-9)

	assert.Nil(t, Benchmark{}.rebase(values))
}

func TestSaveEquityPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.png")
	require.NoError(t, SaveEquityPNG(path, FromTables(sampleTables()...).Values))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, SaveEquityPNG(path, nil))
}

func TestTearsheetName(t *testing.T) {
	tests := []struct {
		scene scenario.Scene
		want  string
		title string
	}{
		{
			scenario.Scene{SaveName: "results", BatchName: "sweep", BatchRuntime: "2024-01-02 10:30", TestNumber: "ab12"},
			"results-sweep-20240102_1030-ab12.html", "sweep",
		},
		{
			scenario.Scene{SaveName: "spx", BatchName: "None", Benchmark: "^GSPC", TestNumber: "cd34"},
			"spx-None--cd34.html", "None  (benchmark: ^GSPC)",
		},
	}
	for _, tt := range tests {
		if got := TearsheetName(tt.scene); got != tt.want {
			t.Errorf("TearsheetName() = %q, want %q", got, tt.want)
		}
		if got := TearsheetTitle(tt.scene); got != tt.title {
			t.Errorf("TearsheetTitle() = %q, want %q", got, tt.title)
		}
	}
}

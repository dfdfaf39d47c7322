package chart

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/scenario"
)

const (
	chartWidth = "1200px"
	axisLayout = "2006-01-02"
)

func initOpts(title string, height string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: height})
}

func zoom() charts.GlobalOpts {
	return charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100})
}

func axisTooltip() charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"})
}

// RenderDashboard writes candles with fill markers, volume and portfolio
// value as one HTML page.
func RenderDashboard(w io.Writer, d Data, title string) error {
	if len(d.Bars) == 0 && len(d.Values) == 0 {
		return core.WrapError(core.ErrNoData, errors.New("nothing to chart"))
	}
	page := components.NewPage()
	page.PageTitle = title

	if len(d.Bars) > 0 {
		x := make([]string, len(d.Bars))
		candles := make([]opts.KlineData, len(d.Bars))
		volume := make([]opts.BarData, len(d.Bars))
		for i, b := range d.Bars {
			x[i] = b.Time.Format(axisLayout)
			candles[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
			volume[i] = opts.BarData{Value: b.Volume}
		}

		kline := charts.NewKLine()
		kline.SetGlobalOptions(
			initOpts(title, "520px"),
			charts.WithTitleOpts(opts.Title{Title: title, Subtitle: d.Symbol}),
			charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
			axisTooltip(),
			zoom(),
		)
		kline.SetXAxis(x).AddSeries("price", candles)

		var buys, sells []opts.ScatterData
		for _, f := range d.Fills {
			pt := opts.ScatterData{Value: []any{f.Date.Format(axisLayout), f.Price}, SymbolSize: 12}
			if f.Units > 0 {
				pt.Symbol = "triangle"
				buys = append(buys, pt)
			} else {
				pt.Symbol = "pin"
				sells = append(sells, pt)
			}
		}
		markers := charts.NewScatter()
		markers.SetXAxis(x).
			AddSeries("buy", buys).
			AddSeries("sell", sells)
		kline.Overlap(markers)

		vol := charts.NewBar()
		vol.SetGlobalOptions(
			initOpts(title, "200px"),
			charts.WithTitleOpts(opts.Title{Title: "Volume"}),
			axisTooltip(),
		)
		vol.SetXAxis(x).AddSeries("volume", volume)

		page.AddCharts(kline, vol)
	}

	if len(d.Values) > 0 {
		page.AddCharts(valueLine(d.Values, title, "Portfolio value"))
	}
	return page.Render(w)
}

func valueLine(values []result.ValuePoint, title, name string) *charts.Line {
	x := make([]string, len(values))
	for i, v := range values {
		x[i] = v.Date.Format(axisLayout)
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(title, "320px"),
		charts.WithTitleOpts(opts.Title{Title: name}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		axisTooltip(),
		zoom(),
	)
	line.SetXAxis(x).AddSeries("value", lineData(values))
	return line
}

// Benchmark is a price series drawn against the portfolio. The zero value
// draws nothing.
type Benchmark struct {
	Name   string
	Prices []result.ValuePoint
}

// BenchmarkFromBars takes the closes of bars as benchmark prices.
func BenchmarkFromBars(name string, bars []core.OHLCV) Benchmark {
	prices := make([]result.ValuePoint, len(bars))
	for i, b := range bars {
		prices[i] = result.ValuePoint{Date: b.Time, Value: b.Close}
	}
	return Benchmark{Name: name, Prices: prices}
}

// rebase aligns the benchmark to the portfolio dates, carrying the last price
// over missing days, and scales it to start at the first portfolio value.
func (b Benchmark) rebase(values []result.ValuePoint) []result.ValuePoint {
	if len(b.Prices) == 0 || len(values) == 0 {
		return nil
	}
	byDay := make(map[string]float64, len(b.Prices))
	for _, p := range b.Prices {
		byDay[p.Date.Format(axisLayout)] = p.Value
	}

	out := make([]result.ValuePoint, len(values))
	last := b.Prices[0].Value
	var base float64
	for i, v := range values {
		if p, ok := byDay[v.Date.Format(axisLayout)]; ok && p > 0 {
			last = p
		}
		if i == 0 {
			base = last
		}
		out[i] = result.ValuePoint{Date: v.Date, Value: last}
	}
	if base <= 0 {
		return nil
	}
	for i := range out {
		out[i].Value = out[i].Value / base * values[0].Value
	}
	return out
}

// RenderTearsheet writes equity, drawdown and daily returns with headline
// metrics. A benchmark is rebased onto the equity chart and its returns are
// shown next to the portfolio's.
func RenderTearsheet(w io.Writer, values []result.ValuePoint, bench Benchmark, title string) error {
	rets := result.Returns(values)
	if len(rets) == 0 {
		return core.WrapError(core.ErrNoData, errors.New("tearsheet needs at least two values"))
	}
	qs, err := result.QuantStats("", values)
	if err != nil {
		return err
	}
	metric := func(name string) float64 {
		return result.AsFloat(qs.Column(name)[0])
	}
	subtitle := fmt.Sprintf("Cumulative %.2f%%  CAGR %.2f%%  Sharpe %.2f  Sortino %.2f  Max DD %.2f%%",
		metric("Cumulative Return -pct"), metric("CAGR -pct"), metric("Sharpe"),
		metric("Sortino"), metric("Max Drawdown -pct"))

	rebased := bench.rebase(values)
	if len(rebased) > 0 {
		last := rebased[len(rebased)-1].Value
		subtitle += fmt.Sprintf("  %s %.2f%%", bench.Name, 100*(last/rebased[0].Value-1))
	}

	page := components.NewPage()
	page.PageTitle = title

	equity := valueLine(values, title, "Equity")
	equity.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}))
	if len(rebased) > 0 {
		equity.AddSeries(bench.Name, lineData(rebased))
	}

	x := make([]string, len(values))
	dd := make([]opts.LineData, len(values))
	for i, v := range result.Drawdowns(values) {
		x[i] = values[i].Date.Format(axisLayout)
		dd[i] = opts.LineData{Value: v}
	}
	drawdown := charts.NewLine()
	drawdown.SetGlobalOptions(
		initOpts(title, "240px"),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %"}),
		axisTooltip(),
	)
	drawdown.SetXAxis(x).AddSeries("drawdown", dd)

	daily := charts.NewBar()
	daily.SetGlobalOptions(
		initOpts(title, "240px"),
		charts.WithTitleOpts(opts.Title{Title: "Daily returns %"}),
		axisTooltip(),
	)
	daily.SetXAxis(x[1:]).AddSeries("returns", barData(rets))
	if len(rebased) > 0 {
		daily.AddSeries(bench.Name, barData(result.Returns(rebased)))
	}

	page.AddCharts(equity, drawdown, daily)
	return page.Render(w)
}

func lineData(values []result.ValuePoint) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v.Value}
	}
	return out
}

// barData scales returns to percent.
func barData(rets []float64) []opts.BarData {
	out := make([]opts.BarData, len(rets))
	for i, r := range rets {
		out[i] = opts.BarData{Value: 100 * r}
	}
	return out
}

// TearsheetName returns the tearsheet file name of a scene. Scenes of one
// batch share the batch part and differ by test number.
func TearsheetName(scene scenario.Scene) string {
	return fmt.Sprintf("%s-%s-%s-%s.html", scene.SaveName, scene.BatchName,
		cleanRuntime(scene.BatchRuntime), scene.TestNumber)
}

// TearsheetTitle names the batch and the benchmark, if any.
func TearsheetTitle(scene scenario.Scene) string {
	if scene.Benchmark == "" {
		return scene.BatchName
	}
	return fmt.Sprintf("%s  (benchmark: %s)", scene.BatchName, scene.Benchmark)
}

func cleanRuntime(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '-', ':':
		case ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// Package chart renders backtest results as HTML (go-echarts) and PNG
// (gonum/plot).
package chart

import (
	"sort"
	"time"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
)

// Fill is a transaction marker.
type Fill struct {
	Date  time.Time
	Price float64
	Units float64
}

// Data is everything the dashboard draws.
type Data struct {
	Symbol string
	Bars   []core.OHLCV
	Fills  []Fill
	Values []result.ValuePoint
}

// FromTables assembles chart data from the ohlcv, transaction and value
// tables of one test. Missing tables leave their part empty.
func FromTables(tables ...result.Table) Data {
	var d Data
	for _, t := range tables {
		switch t.Name {
		case result.TableOHLCV:
			d.Bars = bars(t)
		case result.TableTransaction:
			d.Fills = fills(t)
			if tickers := t.Column("Ticker"); len(tickers) > 0 {
				d.Symbol, _ = tickers[0].(string)
			}
		case result.TableValue:
			agg := result.Aggregate{Tables: []result.Table{t}}
			d.Values = agg.Values()
		}
	}
	sort.Slice(d.Values, func(i, j int) bool { return d.Values[i].Date.Before(d.Values[j].Date) })
	return d
}

// FromAggregate assembles chart data from a freshly built aggregate.
func FromAggregate(agg *result.Aggregate) Data {
	return FromTables(agg.Tables...)
}

func bars(t result.Table) []core.OHLCV {
	date, o, h, l, c, v := t.Column("Date"), t.Column("Open"), t.Column("High"),
		t.Column("Low"), t.Column("Close"), t.Column("Volume")
	out := make([]core.OHLCV, len(date))
	for i := range date {
		out[i] = core.OHLCV{
			Time:   result.AsTime(date[i]),
			Open:   result.AsFloat(o[i]),
			High:   result.AsFloat(h[i]),
			Low:    result.AsFloat(l[i]),
			Close:  result.AsFloat(c[i]),
			Volume: int64(result.AsFloat(v[i])),
		}
	}
	return out
}

func fills(t result.Table) []Fill {
	date, units, price := t.Column("Date"), t.Column("Units"), t.Column("Price")
	out := make([]Fill, len(date))
	for i := range date {
		out[i] = Fill{
			Date:  result.AsTime(date[i]),
			Units: result.AsFloat(units[i]),
			Price: result.AsFloat(price[i]),
		}
	}
	return out
}

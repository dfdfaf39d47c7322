package analyzer

import (
	"math"
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/shopspring/decimal"
)

// TradeRow is one closed trade with excursion statistics.
type TradeRow struct {
	Ref       int
	Ticker    string
	Dir       string
	DateIn    time.Time
	PriceIn   float64
	DateOut   time.Time
	PriceOut  float64
	ChngPct   float64
	PnL       float64
	PnLPct    float64
	Size      float64
	Value     float64
	CumPnL    float64
	NBars     int
	PnLPerBar float64
	MFEPct    float64
	MAEPct    float64
}

// TradeListAnalyzer lists closed trades with maximum favourable and adverse
// excursion.
type TradeListAnalyzer struct {
	base
	rows   []TradeRow
	cumPnL float64
}

func NewTradeList() *TradeListAnalyzer {
	return &TradeListAnalyzer{base: base{name: TradeList}}
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func (l *TradeListAnalyzer) NotifyTrade(env *backtest.Env, t broker.Trade) {
	if !t.IsClosed || len(t.History) == 0 {
		return
	}
	first, last := t.History[0], t.History[len(t.History)-1]

	dir := "short"
	if first.Size > 0 {
		dir = "long"
	}
	// a closing fill leaves the average entry price in place
	priceIn := last.TradePrice
	priceOut := last.Price
	pnl := t.PnLComm
	l.cumPnL += pnl

	var size, value float64
	for _, h := range t.History {
		if math.Abs(h.TradeSize) > math.Abs(size) {
			size = h.TradeSize
			value = math.Abs(h.TradeSize) * h.TradePrice
		}
	}

	var pnlPct float64
	if v := env.Broker.Value(); v != 0 {
		pnlPct = 100 * pnl / v
	}
	var perBar float64
	if t.BarLen > 0 {
		perBar = pnl / float64(t.BarLen)
	}

	var mfe, mae float64
	if bars := env.Window(env.FeedIndex(t.Symbol), t.BarLen+1); len(bars) > 0 && priceIn != 0 {
		hi, lo := bars[0].High, bars[0].Low
		for _, b := range bars[1:] {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		hp := 100 * (hi - priceIn) / priceIn
		lp := 100 * (lo - priceIn) / priceIn
		if dir == "long" {
			mfe, mae = hp, lp
		} else {
			mfe, mae = -lp, -hp
		}
	}

	var chng float64
	if priceIn != 0 {
		chng = 100*priceOut/priceIn - 100
	}

	l.rows = append(l.rows, TradeRow{
		Ref:       t.Ref,
		Ticker:    t.Symbol,
		Dir:       dir,
		DateIn:    first.At,
		PriceIn:   priceIn,
		DateOut:   last.At,
		PriceOut:  priceOut,
		ChngPct:   round2(chng),
		PnL:       pnl,
		PnLPct:    round2(pnlPct),
		Size:      size,
		Value:     value,
		CumPnL:    l.cumPnL,
		NBars:     t.BarLen,
		PnLPerBar: round2(perBar),
		MFEPct:    round2(mfe),
		MAEPct:    round2(mae),
	})
}

// Analysis returns []TradeRow.
func (l *TradeListAnalyzer) Analysis() any { return l.rows }

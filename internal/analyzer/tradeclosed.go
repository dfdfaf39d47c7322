package analyzer

import (
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
)

// ClosedTrade summarises a closed trade.
type ClosedTrade struct {
	Ref        int
	DateClosed time.Time
	Ticker     string
	PnL        float64
	PnLComm    float64
	Commission float64
	DaysOpen   float64
}

// TradeClosedAnalyzer records closed trades.
type TradeClosedAnalyzer struct {
	base
	rows []ClosedTrade
}

func NewTradeClosed() *TradeClosedAnalyzer {
	return &TradeClosedAnalyzer{base: base{name: TradeClosed}}
}

func (a *TradeClosedAnalyzer) NotifyTrade(env *backtest.Env, t broker.Trade) {
	if !t.IsClosed {
		return
	}
	a.rows = append(a.rows, ClosedTrade{
		Ref:        t.Ref,
		DateClosed: env.Now(),
		Ticker:     t.Symbol,
		PnL:        round2(t.PnL),
		PnLComm:    round2(t.PnLComm),
		Commission: t.Commission,
		DaysOpen:   t.ClosedAt.Sub(t.OpenedAt).Hours() / 24,
	})
}

// Analysis returns []ClosedTrade.
func (a *TradeClosedAnalyzer) Analysis() any { return a.rows }

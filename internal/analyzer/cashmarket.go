package analyzer

import (
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
)

// CashValue is the account state at the end of a day.
type CashValue struct {
	Date  time.Time
	Cash  float64
	Value float64
}

// CashMarketAnalyzer records cash and value once per calendar date.
type CashMarketAnalyzer struct {
	base
	rows []CashValue
	last string
}

func NewCashMarket() *CashMarketAnalyzer {
	return &CashMarketAnalyzer{base: base{name: CashMarket}}
}

func (c *CashMarketAnalyzer) NotifyCashValue(env *backtest.Env, cash, value float64) {
	day := env.Now().Format("2006-01-02")
	if day == c.last {
		return
	}
	c.last = day
	c.rows = append(c.rows, CashValue{Date: env.Now(), Cash: cash, Value: value})
}

// Analysis returns []CashValue.
func (c *CashMarketAnalyzer) Analysis() any { return c.rows }

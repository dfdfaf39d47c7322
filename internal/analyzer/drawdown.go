package analyzer

import "github.com/newthinker/btsweep/internal/backtest"

// DrawDown tracks the current and maximum decline of account value from its
// running peak.
type DrawDown struct {
	base

	peak      float64
	length    int
	drawdown  float64
	moneydown float64

	maxLen       int
	maxDrawdown  float64
	maxMoneydown float64
}

func NewDrawDown() *DrawDown {
	return &DrawDown{base: base{name: Drawdown}}
}

func (d *DrawDown) NotifyCashValue(_ *backtest.Env, _, value float64) {
	if value > d.peak {
		d.peak = value
	}
	d.moneydown = d.peak - value
	d.drawdown = 0
	if d.peak > 0 {
		d.drawdown = 100 * d.moneydown / d.peak
	}
	if d.drawdown > 0 {
		d.length++
	} else {
		d.length = 0
	}

	d.maxMoneydown = max(d.maxMoneydown, d.moneydown)
	d.maxDrawdown = max(d.maxDrawdown, d.drawdown)
	d.maxLen = max(d.maxLen, d.length)
}

// Analysis returns a Tree of current and max drawdown.
func (d *DrawDown) Analysis() any {
	return Tree{
		{"len", d.length},
		{"drawdown", d.drawdown},
		{"moneydown", d.moneydown},
		{"max", Tree{
			{"len", d.maxLen},
			{"drawdown", d.maxDrawdown},
			{"moneydown", d.maxMoneydown},
		}},
	}
}

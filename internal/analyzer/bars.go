package analyzer

import (
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
)

// BarRow is a bar stamped with the master feed time.
type BarRow struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Bars records one feed's bars on every master bar. Feed 0 is the
// instrument, feed 1 the benchmark.
type Bars struct {
	base
	feed int
	rows []BarRow
}

func NewBars(name string, feed int) *Bars {
	return &Bars{base: base{name: name}, feed: feed}
}

func (a *Bars) Next(env *backtest.Env) {
	b, ok := env.Current(a.feed)
	if !ok {
		return
	}
	a.rows = append(a.rows, BarRow{
		Date:   env.Now(),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	})
}

// Analysis returns []BarRow.
func (a *Bars) Analysis() any { return a.rows }

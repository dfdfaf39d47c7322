package analyzer

import (
	"sort"
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
)

// SignalTable is the master bar plus strategy signal lines on every bar.
type SignalTable struct {
	Columns []string
	Dates   []time.Time
	Rows    [][]float64
}

// GlobalSignalAnalyzer captures strategy signal lines alongside the bar.
type GlobalSignalAnalyzer struct {
	base
	table SignalTable
	lines []string
}

func NewGlobalSignal() *GlobalSignalAnalyzer {
	return &GlobalSignalAnalyzer{base: base{name: GlobalSignal}}
}

func (g *GlobalSignalAnalyzer) Start(env *backtest.Env) {
	g.table.Columns = []string{"open", "high", "low", "close", "volume"}
	if src, ok := env.Strategy.(backtest.SignalSource); ok {
		for name := range src.Signals() {
			g.lines = append(g.lines, name)
		}
		sort.Strings(g.lines)
		g.table.Columns = append(g.table.Columns, g.lines...)
	}
}

func (g *GlobalSignalAnalyzer) Next(env *backtest.Env) {
	b := env.Master()
	row := []float64{b.Open, b.High, b.Low, b.Close, float64(b.Volume)}
	if len(g.lines) > 0 {
		signals := env.Strategy.(backtest.SignalSource).Signals()
		for _, name := range g.lines {
			var v float64
			if s := signals[name]; env.Index() < len(s) {
				v = s[env.Index()]
			}
			row = append(row, v)
		}
	}
	g.table.Dates = append(g.table.Dates, env.Now())
	g.table.Rows = append(g.table.Rows, row)
}

// Analysis returns a SignalTable.
func (g *GlobalSignalAnalyzer) Analysis() any { return g.table }

package result

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/btsweep/internal/analyzer"
	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/scenario"
	"go.uber.org/zap"
)

// HasTransactions reports whether the run filled any order.
func HasTransactions(res *backtest.Result) bool {
	a, ok := res.Analyzer(analyzer.Transactions)
	if !ok {
		return false
	}
	rows, _ := a.Analysis().([]analyzer.Transaction)
	return len(rows) > 0
}

// Build converts every analyzer of a run into tables and adds the dimension
// and quantstats tables. A converter that fails is logged and skipped.
func Build(res *backtest.Result, scene scenario.Scene, dims []string, logger *zap.Logger) *Aggregate {
	if logger == nil {
		logger = zap.NewNop()
	}
	tn := scene.TestNumber
	logger = logger.With(zap.String("test_number", tn))
	agg := &Aggregate{TestNumber: tn}

	for _, a := range res.Analyzers() {
		if a.Name() == analyzer.Benchmark && scene.Benchmark == "" {
			continue
		}
		conv, ok := Converters[a.Name()]
		if !ok {
			logger.Warn("no converter for analyzer", zap.String("analyzer", a.Name()))
			continue
		}
		t, err := conv(tn, a.Analysis())
		if err != nil {
			logger.Warn("converting analyzer",
				zap.String("analyzer", a.Name()),
				zap.Error(core.WrapError(core.ErrStorageFailed, err)))
			continue
		}
		agg.add(t)
	}

	agg.add(Dimension(scene, dims))

	if qs, err := QuantStats(tn, agg.Values()); err != nil {
		logger.Warn("computing quantstats", zap.Error(err))
	} else {
		agg.add(qs)
	}
	return agg
}

// Dimension builds the one-row dimension table from the scene's dimension
// parameters. It has no extra test_number column; test_number is itself a
// dimension.
func Dimension(scene scenario.Scene, dims []string) Table {
	row := make([]any, len(dims))
	for i, d := range dims {
		v, _ := scene.Get(d)
		row[i] = Cell(v)
	}
	return Table{Name: TableDimension, Columns: append([]string(nil), dims...), Rows: [][]any{row}}
}

// Cell flattens a parameter value into something a table cell can hold.
func Cell(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("(%s, %v)", k, x[k])
		}
		return strings.Join(parts, ", ")
	case time.Time:
		return x.Format(core.DateLayout)
	default:
		return v
	}
}

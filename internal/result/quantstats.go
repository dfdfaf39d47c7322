package result

import (
	"errors"
	"math"
	"slices"

	"github.com/newthinker/btsweep/internal/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const tradingDays = 252

// QuantStatsColumns are the metric columns of the quantstats table.
var QuantStatsColumns = []string{
	"Start Period", "End Period", "Cumulative Return -pct", "CAGR -pct",
	"Sharpe", "Sortino", "Max Drawdown -pct", "Longest DD Days",
	"Volatility ann. -pct", "Calmar", "Skew", "Kurtosis",
	"Expected Daily -pct", "Best Day -pct", "Worst Day -pct", "Win Days -pct",
	"Omega", "Recovery Factor", "Ulcer Index", "Profit Factor", "Payoff Ratio",
	"Tail Ratio",
}

// Returns converts a value series into simple period returns.
func Returns(values []ValuePoint) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, values[i].Value/prev-1)
	}
	return out
}

// Drawdowns returns the percentage decline from the running peak at every
// point, as values <= 0.
func Drawdowns(values []ValuePoint) []float64 {
	out := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		peak = math.Max(peak, v.Value)
		if peak > 0 {
			out[i] = 100 * (v.Value/peak - 1)
		}
	}
	return out
}

// QuantStats computes return metrics from the account value series.
func QuantStats(testNumber string, values []ValuePoint) (Table, error) {
	rets := Returns(values)
	if len(rets) == 0 {
		return Table{}, errors.New("quantstats: need at least two values")
	}
	first, last := values[0], values[len(values)-1]

	cum := 0.0
	if first.Value != 0 {
		cum = last.Value/first.Value - 1
	}
	cagr := 0.0
	if years := last.Date.Sub(first.Date).Hours() / 24 / 365; years > 0 && cum > -1 {
		cagr = math.Pow(1+cum, 1/years) - 1
	}

	mean, std := stat.MeanStdDev(rets, nil)
	sharpe := ratio(mean, std) * math.Sqrt(tradingDays)

	var downside float64
	for _, r := range rets {
		if r < 0 {
			downside += r * r
		}
	}
	sortino := ratio(mean, math.Sqrt(downside/float64(len(rets)))) * math.Sqrt(tradingDays)

	dd := Drawdowns(values)
	maxDD := floats.Min(dd)
	calmar := ratio(cagr*100, math.Abs(maxDD))

	var (
		wins              int
		gain, loss, total float64
		nGain, nLoss      int
	)
	for _, r := range rets {
		total += r
		if r > 0 {
			wins++
		}
		switch {
		case r > 0:
			gain += r
			nGain++
		case r < 0:
			loss -= r
			nLoss++
		}
	}
	payoff := 0.0
	if nGain > 0 && nLoss > 0 {
		payoff = ratio(gain/float64(nGain), loss/float64(nLoss))
	}

	row := []any{
		first.Date.Format(core.DateLayout),
		last.Date.Format(core.DateLayout),
		100 * cum,
		100 * cagr,
		sharpe,
		sortino,
		maxDD,
		longestDrawdownDays(values),
		finite(100 * std * math.Sqrt(tradingDays)),
		calmar,
		finite(stat.Skew(rets, nil)),
		finite(stat.ExKurtosis(rets, nil)),
		100 * mean,
		100 * floats.Max(rets),
		100 * floats.Min(rets),
		100 * float64(wins) / float64(len(rets)),
		ratio(gain, loss),
		ratio(math.Abs(total), math.Abs(maxDD)/100),
		ulcerIndex(dd, len(rets)),
		ratio(gain, loss),
		payoff,
		tailRatio(rets),
	}
	return keyed(TableQuantStats, testNumber, QuantStatsColumns, [][]any{row}), nil
}

// ratio divides, treating a zero or undefined denominator as 0.
func ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return 0
	}
	return finite(a / b)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// longestDrawdownDays is the longest calendar span spent below a prior peak.
func longestDrawdownDays(values []ValuePoint) int {
	var longest int
	peakAt := values[0].Date
	peak := values[0].Value
	for _, v := range values[1:] {
		if v.Value >= peak {
			peak, peakAt = v.Value, v.Date
			continue
		}
		longest = max(longest, int(v.Date.Sub(peakAt).Hours()/24))
	}
	return longest
}

// ulcerIndex is the root mean square of fractional drawdowns. dd is in
// percent as returned by Drawdowns.
func ulcerIndex(dd []float64, n int) float64 {
	if n < 2 {
		return 0
	}
	var sq float64
	for _, d := range dd {
		sq += (d / 100) * (d / 100)
	}
	return math.Sqrt(sq / float64(n-1))
}

// tailRatio compares the 95th percentile return with the 5th.
func tailRatio(rets []float64) float64 {
	sorted := slices.Clone(rets)
	slices.Sort(sorted)
	hi := stat.Quantile(0.95, stat.Empirical, sorted, nil)
	lo := stat.Quantile(0.05, stat.Empirical, sorted, nil)
	return math.Abs(ratio(hi, lo))
}

// Package indicator computes bar-aligned technical series. Every output has
// the same length as its input; values before the warm-up period are NaN.
package indicator

import "math"

// SMA calculates a Simple Moving Average aligned with prices.
func SMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	out[period-1] = sum / float64(period)

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		out[i] = sum / float64(period)
	}
	return out
}

// EMA calculates an Exponential Moving Average seeded with the SMA of the
// first period prices.
func EMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	k := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*k + ema
		out[i] = ema
	}
	return out
}

// Ready reports how many leading values of a series are NaN.
func Ready(series []float64) int {
	for i, v := range series {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(series)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

package backtest

import (
	"math"

	"github.com/newthinker/btsweep/internal/broker"
	"gonum.org/v1/gonum/stat"
)

// CalculateStats computes performance statistics from trades. Open trades
// count toward TotalTrades only.
func CalculateStats(trades []broker.Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var winning, losing int
	var totalReturn float64
	var returns []float64

	for _, t := range trades {
		if !t.IsClosed {
			continue
		}
		r := tradeReturn(t)
		returns = append(returns, r)
		totalReturn += r
		if t.PnLComm > 0 {
			winning++
		} else {
			losing++
		}
	}

	closedTrades := winning + losing
	var winRate float64
	if closedTrades > 0 {
		winRate = float64(winning) / float64(closedTrades) * 100
	}

	return Stats{
		TotalTrades:   len(trades),
		WinningTrades: winning,
		LosingTrades:  losing,
		WinRate:       winRate,
		TotalReturn:   totalReturn * 100, // Convert to percentage
		MaxDrawdown:   calculateMaxDrawdown(returns) * 100,
		SharpeRatio:   calculateSharpeRatio(returns),
	}
}

// tradeReturn is net PnL over the largest notional the trade carried.
func tradeReturn(t broker.Trade) float64 {
	if t.MaxValue == 0 {
		return 0
	}
	return t.PnLComm / t.MaxValue
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(returns []float64) float64 {
	var maxDD, peak float64
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		peak = math.Max(peak, cumulative)
		if peak > 0 {
			maxDD = math.Max(maxDD, (peak-cumulative)/peak)
		}
	}
	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return with a zero risk-free
// rate, annualized over 252 periods.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

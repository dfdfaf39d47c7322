package result

import (
	"fmt"

	"github.com/newthinker/btsweep/internal/analyzer"
)

// Table names.
const (
	TableTradeList     = "trade_list"
	TableTrade         = "trade"
	TableTransaction   = "transaction"
	TableTradeAnalysis = "trade_analysis"
	TableDrawdown      = "drawdown"
	TableValue         = "value"
	TableOHLCV         = "ohlcv"
	TableBenchmark     = "benchmark"
	TableGlobalOut     = "global_out"
	TableOrderHistory  = "order_history"
	TableDimension     = "dimension"
	TableQuantStats    = "quantstats"
)

// TradeAnalysisColumns are always present in trade_analysis, zero filled
// when the run did not produce them.
var TradeAnalysisColumns = []string{
	"total_total", "total_open", "total_closed",
	"streak_won_current", "streak_won_longest", "streak_lost_current", "streak_lost_longest",
	"pnl_gross_total", "pnl_gross_average", "pnl_net_total", "pnl_net_average",
	"won_total", "won_pnl_total", "won_pnl_average", "won_pnl_max",
	"lost_total", "lost_pnl_total", "lost_pnl_average", "lost_pnl_max",
	"long_total", "long_pnl_total", "long_pnl_average",
	"long_pnl_won_total", "long_pnl_won_average", "long_pnl_won_max",
	"long_pnl_lost_total", "long_pnl_lost_average", "long_pnl_lost_max",
	"long_won", "long_lost",
	"short_total", "short_pnl_total", "short_pnl_average",
	"short_pnl_won_total", "short_pnl_won_average", "short_pnl_won_max",
	"short_pnl_lost_total", "short_pnl_lost_average", "short_pnl_lost_max",
	"short_won", "short_lost",
	"len_total", "len_average", "len_max", "len_min",
	"len_won_total", "len_won_average", "len_won_max", "len_won_min",
	"len_lost_total", "len_lost_average", "len_lost_max", "len_lost_min",
	"len_long_total", "len_long_average", "len_long_max", "len_long_min",
	"len_long_won_total", "len_long_won_average", "len_long_won_max", "len_long_won_min",
	"len_long_lost_total", "len_long_lost_average", "len_long_lost_max", "len_long_lost_min",
	"len_short_total", "len_short_average", "len_short_max", "len_short_min",
	"len_short_won_total", "len_short_won_average", "len_short_won_max", "len_short_won_min",
	"len_short_lost_total", "len_short_lost_average", "len_short_lost_max", "len_short_lost_min",
}

// Converter turns one analyzer's output into a table.
type Converter func(testNumber string, analysis any) (Table, error)

// Converters maps analyzer names to their converter.
var Converters = map[string]Converter{
	analyzer.TradeList:    tradeList,
	analyzer.TradeClosed:  tradeClosed,
	analyzer.Transactions: transactions,
	analyzer.Trades:       tradeAnalysis,
	analyzer.Drawdown:     drawdown,
	analyzer.CashMarket:   cashMarket,
	analyzer.OHLCV:        bars(TableOHLCV),
	analyzer.Benchmark:    bars(TableBenchmark),
	analyzer.GlobalSignal: globalOut,
	analyzer.OrderHistory: orderHistory,
}

func unexpected(analysis any) error {
	return fmt.Errorf("unexpected analysis type %T", analysis)
}

func tradeList(tn string, analysis any) (Table, error) {
	rows, ok := analysis.([]analyzer.TradeRow)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{
			r.Ref, r.Ticker, r.Dir, r.DateIn, r.PriceIn, r.DateOut, r.PriceOut,
			r.ChngPct, r.PnL, r.PnLPct, r.Size, r.Value, r.CumPnL, r.NBars,
			r.PnLPerBar, r.MFEPct, r.MAEPct,
		}
	}
	return keyed(TableTradeList, tn, []string{
		"ref", "ticker", "dir", "datein", "pricein", "dateout", "priceout",
		"chng_pct", "pnl", "pnl_pct", "size", "value", "cumpnl", "nbars",
		"pnl/bar", "mfe_pct", "mae_pct",
	}, out), nil
}

func tradeClosed(tn string, analysis any) (Table, error) {
	rows, ok := analysis.([]analyzer.ClosedTrade)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.DateClosed, r.Ticker, r.PnL, r.PnLComm, r.Commission, r.DaysOpen}
	}
	return keyed(TableTrade, tn,
		[]string{"Date Closed", "Ticker", "PnL", "PnL Comm", "Commission", "Days Open"}, out), nil
}

func transactions(tn string, analysis any) (Table, error) {
	rows, ok := analysis.([]analyzer.Transaction)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Date, r.Units, r.Price, r.SID, r.Ticker, r.Value}
	}
	return keyed(TableTransaction, tn,
		[]string{"Date", "Units", "Price", "SID", "Ticker", "Value"}, out), nil
}

func tradeAnalysis(tn string, analysis any) (Table, error) {
	tree, ok := analysis.(analyzer.Tree)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	flat := tree.Flatten()
	seen := make(map[string]bool, len(flat))
	var cols []string
	var row []any
	for _, n := range flat {
		seen[n.Key] = true
		cols = append(cols, n.Key)
		row = append(row, n.Value)
	}
	for _, c := range TradeAnalysisColumns {
		if !seen[c] {
			cols = append(cols, c)
			row = append(row, 0)
		}
	}
	return keyed(TableTradeAnalysis, tn, cols, [][]any{row}), nil
}

func drawdown(tn string, analysis any) (Table, error) {
	tree, ok := analysis.(analyzer.Tree)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	var cols []string
	var row []any
	for _, n := range tree.Flatten() {
		cols = append(cols, n.Key)
		row = append(row, n.Value)
	}
	return keyed(TableDrawdown, tn, cols, [][]any{row}), nil
}

func cashMarket(tn string, analysis any) (Table, error) {
	rows, ok := analysis.([]analyzer.CashValue)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Date, r.Cash, r.Value}
	}
	return keyed(TableValue, tn, []string{"Date", "Cash", "Value"}, out), nil
}

func bars(name string) Converter {
	return func(tn string, analysis any) (Table, error) {
		rows, ok := analysis.([]analyzer.BarRow)
		if !ok {
			return Table{}, unexpected(analysis)
		}
		out := make([][]any, len(rows))
		for i, r := range rows {
			out[i] = []any{r.Date, r.Open, r.High, r.Low, r.Close, r.Volume}
		}
		return keyed(name, tn, []string{"Date", "Open", "High", "Low", "Close", "Volume"}, out), nil
	}
}

func globalOut(tn string, analysis any) (Table, error) {
	sig, ok := analysis.(analyzer.SignalTable)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	out := make([][]any, len(sig.Rows))
	for i, r := range sig.Rows {
		row := make([]any, 0, len(r)+1)
		row = append(row, sig.Dates[i])
		for _, v := range r {
			row = append(row, v)
		}
		out[i] = row
	}
	return keyed(TableGlobalOut, tn, append([]string{"Datetime"}, sig.Columns...), out), nil
}

func orderHistory(tn string, analysis any) (Table, error) {
	rows, ok := analysis.([]analyzer.OrderSnapshot)
	if !ok {
		return Table{}, unexpected(analysis)
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Date, r.Ref, r.Status, r.OrdType, r.Side, r.Price, r.Size}
	}
	return keyed(TableOrderHistory, tn,
		[]string{"Datetime", "ref", "status", "ordtype", "side", "price", "size"}, out), nil
}

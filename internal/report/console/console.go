// Package console prints sweep parameters and trade lists to a terminal.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/newthinker/btsweep/internal/analyzer"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/olekukonko/tablewriter"
)

// PrintParams writes one "    name=value," line per parameter. String values
// are quoted.
func PrintParams(w io.Writer, params []scenario.Pair) {
	for _, p := range params {
		v := fmt.Sprint(p.Value)
		if s, ok := p.Value.(string); ok {
			v = strconv.Quote(s)
		}
		fmt.Fprintf(w, "    %s=%s,\n", p.Name, v)
	}
	fmt.Fprintln(w)
}

var tradeListHeader = []string{
	"ref", "ticker", "dir", "datein", "pricein", "dateout", "priceout", "chng%",
	"pnl", "pnl%", "size", "value", "cumpnl", "nbars", "pnl/bar", "mfe%", "mae%",
}

// PrintTradeList renders closed trades as a table.
func PrintTradeList(w io.Writer, rows []analyzer.TradeRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "There were no completed trades.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(tradeListHeader)
	table.SetAutoFormatHeaders(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range rows {
		table.Append([]string{
			strconv.Itoa(r.Ref), r.Ticker, r.Dir,
			r.DateIn.Format(core.DateLayout), num(r.PriceIn),
			r.DateOut.Format(core.DateLayout), num(r.PriceOut),
			num(r.ChngPct), num(r.PnL), num(r.PnLPct), num(r.Size), num(r.Value),
			num(r.CumPnL), strconv.Itoa(r.NBars), num(r.PnLPerBar), num(r.MFEPct), num(r.MAEPct),
		})
	}
	table.Render()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// YesOrNo asks question until the answer starts with y or n. It returns
// false when input ends.
func YesOrNo(r io.Reader, w io.Writer, question string) bool {
	in := bufio.NewScanner(r)
	prompt := question
	for {
		fmt.Fprintf(w, "%s (y/n): ", prompt)
		if !in.Scan() {
			return false
		}
		reply := strings.ToLower(strings.TrimSpace(in.Text()))
		switch {
		case strings.HasPrefix(reply, "y"):
			return true
		case strings.HasPrefix(reply, "n"):
			return false
		}
		prompt = "Please enter y/n"
	}
}

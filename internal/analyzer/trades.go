package analyzer

import (
	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
)

type pnlStat struct {
	total, max float64
	count      int
}

func (p *pnlStat) add(v float64, better func(a, b float64) bool) {
	if p.count == 0 || better(v, p.max) {
		p.max = v
	}
	p.total += v
	p.count++
}

func (p pnlStat) average() float64 {
	if p.count == 0 {
		return 0
	}
	return p.total / float64(p.count)
}

type lenStat struct {
	total, max, min, count int
}

func (l *lenStat) add(n int) {
	if l.count == 0 || n > l.max {
		l.max = n
	}
	if l.count == 0 || n < l.min {
		l.min = n
	}
	l.total += n
	l.count++
}

func (l lenStat) tree() Tree {
	avg := 0.0
	if l.count > 0 {
		avg = float64(l.total) / float64(l.count)
	}
	return Tree{{"total", l.total}, {"average", avg}, {"max", l.max}, {"min", l.min}}
}

// sideStats aggregates closed trades of one direction.
type sideStats struct {
	pnl       pnlStat
	won, lost pnlStat
	length    lenStat
	lenWon    lenStat
	lenLost   lenStat
}

// TradeAnalyzer produces nested statistics over closed trades.
type TradeAnalyzer struct {
	base

	total, open, closed     int
	streakWon, streakLost   int
	longestWon, longestLost int
	gross, net              pnlStat
	won, lost               pnlStat
	length, lenWon, lenLost lenStat
	long, short             sideStats
}

func NewTradeAnalyzer() *TradeAnalyzer {
	return &TradeAnalyzer{base: base{name: Trades}}
}

func higher(a, b float64) bool { return a > b }
func lower(a, b float64) bool  { return a < b }

func (a *TradeAnalyzer) NotifyTrade(_ *backtest.Env, t broker.Trade) {
	if t.JustOpened {
		a.total++
		a.open++
	}
	if !t.IsClosed {
		return
	}
	a.open--
	a.closed++

	won := t.PnL >= 0
	if won {
		a.streakWon++
		a.streakLost = 0
	} else {
		a.streakLost++
		a.streakWon = 0
	}
	a.longestWon = max(a.longestWon, a.streakWon)
	a.longestLost = max(a.longestLost, a.streakLost)

	a.gross.add(t.PnL, higher)
	a.net.add(t.PnLComm, higher)
	a.length.add(t.BarLen)

	side := &a.short
	if t.Long {
		side = &a.long
	}
	side.pnl.add(t.PnLComm, higher)
	side.length.add(t.BarLen)
	if won {
		a.won.add(t.PnLComm, higher)
		a.lenWon.add(t.BarLen)
		side.won.add(t.PnLComm, higher)
		side.lenWon.add(t.BarLen)
	} else {
		a.lost.add(t.PnLComm, lower)
		a.lenLost.add(t.BarLen)
		side.lost.add(t.PnLComm, lower)
		side.lenLost.add(t.BarLen)
	}
}

func pnlTree(p pnlStat, withMax bool) Tree {
	t := Tree{{"total", p.total}, {"average", p.average()}}
	if withMax {
		t = append(t, Node{"max", p.max})
	}
	return t
}

func (s sideStats) tree() Tree {
	pnl := pnlTree(s.pnl, false)
	pnl = append(pnl,
		Node{"won", pnlTree(s.won, true)},
		Node{"lost", pnlTree(s.lost, true)},
	)
	return Tree{
		{"total", s.pnl.count},
		{"pnl", pnl},
		{"won", s.won.count},
		{"lost", s.lost.count},
	}
}

func (s sideStats) lenTree() Tree {
	t := s.length.tree()
	return append(t, Node{"won", s.lenWon.tree()}, Node{"lost", s.lenLost.tree()})
}

// Analysis returns a Tree. Only the totals are present until a trade closes.
func (a *TradeAnalyzer) Analysis() any {
	totals := Tree{{"total", a.total}}
	if a.total > 0 {
		totals = append(totals, Node{"open", a.open})
	}
	if a.closed == 0 {
		return Tree{{"total", totals}}
	}
	totals = append(totals, Node{"closed", a.closed})

	length := a.length.tree()
	length = append(length,
		Node{"won", a.lenWon.tree()},
		Node{"lost", a.lenLost.tree()},
		Node{"long", a.long.lenTree()},
		Node{"short", a.short.lenTree()},
	)

	return Tree{
		{"total", totals},
		{"streak", Tree{
			{"won", Tree{{"current", a.streakWon}, {"longest", a.longestWon}}},
			{"lost", Tree{{"current", a.streakLost}, {"longest", a.longestLost}}},
		}},
		{"pnl", Tree{
			{"gross", pnlTree(a.gross, false)},
			{"net", pnlTree(a.net, false)},
		}},
		{"won", Tree{{"total", a.won.count}, {"pnl", pnlTree(a.won, true)}}},
		{"lost", Tree{{"total", a.lost.count}, {"pnl", pnlTree(a.lost, true)}}},
		{"long", a.long.tree()},
		{"short", a.short.tree()},
		{"len", length},
	}
}


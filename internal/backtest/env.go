package backtest

import (
	"time"

	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
)

// Env is the view of a running backtest handed to strategies and analyzers.
type Env struct {
	Feeds    []Feed
	Broker   *broker.Simulator
	Strategy Strategy

	index  int
	cursor [][]int // per feed, bar index at each master bar or -1
}

func newEnv(feeds []Feed, sim *broker.Simulator, strat Strategy) *Env {
	env := &Env{Feeds: feeds, Broker: sim, Strategy: strat}
	master := feeds[0].Bars
	env.cursor = make([][]int, len(feeds))
	for j, f := range feeds {
		idx := make([]int, len(master))
		p := -1
		for i, m := range master {
			for p+1 < len(f.Bars) && !f.Bars[p+1].Time.After(m.Time) {
				p++
			}
			idx[i] = p
		}
		env.cursor[j] = idx
	}
	return env
}

// Index returns the current master bar index.
func (e *Env) Index() int { return e.index }

// Len returns the number of master bars.
func (e *Env) Len() int { return len(e.Feeds[0].Bars) }

// Now returns the time of the current master bar.
func (e *Env) Now() time.Time { return e.Feeds[0].Bars[e.index].Time }

// Master returns the current master bar.
func (e *Env) Master() core.OHLCV { return e.Feeds[0].Bars[e.index] }

// Symbol returns the master feed name.
func (e *Env) Symbol() string { return e.Feeds[0].Name }

// Current returns the latest bar of feed at or before the current master bar.
func (e *Env) Current(feed int) (core.OHLCV, bool) {
	if feed < 0 || feed >= len(e.Feeds) {
		return core.OHLCV{}, false
	}
	p := e.cursor[feed][e.index]
	if p < 0 {
		return core.OHLCV{}, false
	}
	return e.Feeds[feed].Bars[p], true
}

// fresh reports whether feed has a bar stamped at the current master bar.
func (e *Env) fresh(feed int) bool {
	p := e.cursor[feed][e.index]
	if p < 0 {
		return false
	}
	return e.index == 0 || e.cursor[feed][e.index-1] != p
}

// Window returns up to n bars of feed ending at the current master bar.
func (e *Env) Window(feed, n int) []core.OHLCV {
	if feed < 0 || feed >= len(e.Feeds) || n <= 0 {
		return nil
	}
	p := e.cursor[feed][e.index]
	if p < 0 {
		return nil
	}
	from := max(p-n+1, 0)
	return e.Feeds[feed].Bars[from : p+1]
}

// FeedIndex returns the index of the feed called name, or -1.
func (e *Env) FeedIndex(name string) int {
	for i, f := range e.Feeds {
		if f.Name == name {
			return i
		}
	}
	return -1
}

package broker

import (
	"math"
	"time"
)

// TradeEvent is one fill that changed a trade.
type TradeEvent struct {
	At         time.Time
	Bar        int
	Size       float64 // signed fill size
	Price      float64
	Commission float64
	PnL        float64
	// TradeSize and TradePrice are the trade's state after the fill.
	TradeSize  float64
	TradePrice float64
}

// Trade runs from the moment a position leaves zero until it returns to zero.
type Trade struct {
	Ref    int
	Symbol string
	Long   bool

	Size       float64
	Price      float64
	Value      float64
	Commission float64
	PnL        float64
	PnLComm    float64

	JustOpened bool
	IsOpen     bool
	IsClosed   bool

	OpenedAt time.Time
	ClosedAt time.Time
	OpenBar  int
	CloseBar int
	BarLen   int

	MaxSize  float64
	MaxValue float64

	History []TradeEvent
}

func newTrade(ref int, symbol string) *Trade {
	return &Trade{Ref: ref, Symbol: symbol}
}

// update folds a fill into the trade.
func (t *Trade) update(size, price, commission, pnl float64, at time.Time, bar int) {
	t.JustOpened = false
	if t.Size == 0 && !t.IsOpen {
		t.Long = size > 0
		t.IsOpen = true
		t.JustOpened = true
		t.OpenedAt = at
		t.OpenBar = bar
	}

	prev := t.Size
	t.Size += size
	t.Commission += commission
	t.PnL += pnl
	t.PnLComm = t.PnL - t.Commission

	if math.Abs(t.Size) > math.Abs(prev) {
		t.Price = (prev*t.Price + size*price) / t.Size
	}
	if t.Size == 0 {
		t.IsOpen = false
		t.IsClosed = true
		t.ClosedAt = at
		t.CloseBar = bar
		t.BarLen = bar - t.OpenBar
	}

	t.Value = math.Abs(t.Size) * t.Price
	t.MaxSize = math.Max(t.MaxSize, math.Abs(t.Size))
	t.MaxValue = math.Max(t.MaxValue, t.Value)

	t.History = append(t.History, TradeEvent{
		At:         at,
		Bar:        bar,
		Size:       size,
		Price:      price,
		Commission: commission,
		PnL:        pnl,
		TradeSize:  t.Size,
		TradePrice: t.Price,
	})
}

// snapshot copies the trade so later fills do not alter a notification.
func (t *Trade) snapshot() Trade {
	c := *t
	c.History = append([]TradeEvent(nil), t.History...)
	return c
}

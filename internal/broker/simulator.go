package broker

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/btsweep/internal/core"
)

// Events are the notifications produced while processing a bar.
type Events struct {
	Orders []Order
	Trades []Trade
}

// Simulator is a single-account broker that matches orders against bars.
// It is driven by one backtest run and is not safe for concurrent use.
type Simulator struct {
	cash  float64
	comm  CommissionInfo
	sizer Sizer

	nextRef   int
	tradeRef  int
	orders    []*Order
	positions map[string]*Position
	trades    map[string]*Trade
	closes    map[string]float64
	queued    []Order
}

// NewSimulator creates a simulator with starting cash. A nil sizer means
// requests must carry a size.
func NewSimulator(cash float64, comm CommissionInfo, sizer Sizer) *Simulator {
	return &Simulator{
		cash:      cash,
		comm:      comm,
		sizer:     sizer,
		positions: make(map[string]*Position),
		trades:    make(map[string]*Trade),
		closes:    make(map[string]float64),
	}
}

// Commission returns the commission model.
func (s *Simulator) Commission() CommissionInfo { return s.comm }

// Cash returns the available cash.
func (s *Simulator) Cash() float64 { return s.cash }

// Value returns cash plus the marked value of every open position.
func (s *Simulator) Value() float64 {
	v := s.cash
	for sym, p := range s.positions {
		if p.Size == 0 {
			continue
		}
		v += s.comm.PositionValue(p.Size, p.Price, s.closes[sym])
	}
	return v
}

// Position returns the position in symbol.
func (s *Simulator) Position(symbol string) Position {
	if p, ok := s.positions[symbol]; ok {
		return *p
	}
	return Position{Symbol: symbol}
}

// Mark records the latest close used for valuation and sizing.
func (s *Simulator) Mark(symbol string, close float64) {
	s.closes[symbol] = close
}

// Pending returns orders that can still fill, in submission order.
func (s *Simulator) Pending() []Order {
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Alive() {
			out = append(out, *o)
		}
	}
	return out
}

// Submit accepts an order. It becomes eligible to fill on the next bar.
func (s *Simulator) Submit(req OrderRequest, at time.Time, bar int) (Order, error) {
	o, err := s.newOrder(req, at, bar)
	if err != nil {
		return Order{}, err
	}
	s.orders = append(s.orders, o)
	return *o, nil
}

// BuyBracket submits a market buy with a protective stop sell below and a
// take-profit limit sell above. The children wait for the parent to fill and
// cancel each other once one fills.
func (s *Simulator) BuyBracket(symbol string, size, stopPrice, limitPrice float64, at time.Time, bar int) ([]Order, error) {
	return s.bracket(symbol, OrderSideBuy, size, stopPrice, limitPrice, at, bar)
}

// SellBracket is the short-side mirror of BuyBracket.
func (s *Simulator) SellBracket(symbol string, size, stopPrice, limitPrice float64, at time.Time, bar int) ([]Order, error) {
	return s.bracket(symbol, OrderSideSell, size, stopPrice, limitPrice, at, bar)
}

func (s *Simulator) bracket(symbol string, side OrderSide, size, stopPrice, limitPrice float64, at time.Time, bar int) ([]Order, error) {
	parent, err := s.newOrder(OrderRequest{Symbol: symbol, Side: side, Type: OrderTypeMarket, Size: size}, at, bar)
	if err != nil {
		return nil, err
	}
	exit := OrderSideSell
	if side == OrderSideSell {
		exit = OrderSideBuy
	}
	stop, err := s.newOrder(OrderRequest{Symbol: symbol, Side: exit, Type: OrderTypeStop, Size: parent.Size, StopPrice: stopPrice}, at, bar)
	if err != nil {
		return nil, err
	}
	limit, err := s.newOrder(OrderRequest{Symbol: symbol, Side: exit, Type: OrderTypeLimit, Size: parent.Size, Price: limitPrice}, at, bar)
	if err != nil {
		return nil, err
	}

	for _, c := range []*Order{stop, limit} {
		c.parent = parent
		c.ParentRef = parent.Ref
		c.activeFrom = math.MaxInt
	}
	parent.children = []*Order{stop, limit}
	s.orders = append(s.orders, parent, stop, limit)
	return []Order{*parent, *stop, *limit}, nil
}

func (s *Simulator) newOrder(req OrderRequest, at time.Time, bar int) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, core.WrapError(core.ErrOrderRejected, err)
	}
	size := req.Size
	if size == 0 && s.sizer != nil {
		price, ok := s.closes[req.Symbol]
		if !ok {
			return nil, core.WrapError(core.ErrOrderRejected, ErrNoPrice)
		}
		size = s.sizer.Size(s.cash, price, req.Side, s.Position(req.Symbol).Size)
	}
	if size <= 0 {
		return nil, core.WrapError(core.ErrOrderRejected, ErrInvalidQuantity)
	}

	s.nextRef++
	return &Order{
		Ref:        s.nextRef,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Size:       size,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		Status:     OrderStatusPending,
		CreatedAt:  at,
		CreatedBar: bar,
		activeFrom: bar + 1,
	}, nil
}

// Cancel cancels a live order and any bracket children. The notification is
// delivered with the next processed bar.
func (s *Simulator) Cancel(ref int) error {
	for _, o := range s.orders {
		if o.Ref != ref {
			continue
		}
		if !o.Alive() {
			return ErrOrderNotCancellable
		}
		s.finish(o, OrderStatusCancelled)
		return nil
	}
	return fmt.Errorf("%w: ref %d", ErrOrderNotFound, ref)
}

// Process matches live orders for symbol against bar.
func (s *Simulator) Process(symbol string, bar core.OHLCV, idx int) Events {
	var ev Events
	ev.Orders = append(ev.Orders, s.queued...)
	s.queued = s.queued[:0]

	for _, o := range append([]*Order(nil), s.orders...) {
		if o.Symbol != symbol || !o.Alive() || o.activeFrom > idx {
			continue
		}
		price, ok := match(*o, bar)
		if !ok {
			continue
		}
		s.execute(o, price, bar.Time, idx, &ev)
	}

	ev.Orders = append(ev.Orders, s.queued...)
	s.queued = s.queued[:0]
	s.prune()
	return ev
}

// match returns the fill price of an order on a bar. Gaps through the
// order price fill at the open.
func match(o Order, bar core.OHLCV) (float64, bool) {
	switch o.Type {
	case OrderTypeMarket:
		return bar.Open, true
	case OrderTypeLimit:
		if o.IsBuy() {
			if bar.Open <= o.Price {
				return bar.Open, true
			}
			if bar.Low <= o.Price {
				return o.Price, true
			}
			return 0, false
		}
		if bar.Open >= o.Price {
			return bar.Open, true
		}
		if bar.High >= o.Price {
			return o.Price, true
		}
	case OrderTypeStop:
		if o.IsBuy() {
			if bar.Open >= o.StopPrice {
				return bar.Open, true
			}
			if bar.High >= o.StopPrice {
				return o.StopPrice, true
			}
			return 0, false
		}
		if bar.Open <= o.StopPrice {
			return bar.Open, true
		}
		if bar.Low <= o.StopPrice {
			return o.StopPrice, true
		}
	}
	return 0, false
}

func (s *Simulator) execute(o *Order, price float64, at time.Time, idx int, ev *Events) {
	pos := s.positions[o.Symbol]
	if pos == nil {
		pos = &Position{Symbol: o.Symbol}
		s.positions[o.Symbol] = pos
	}

	size := o.Signed()
	opened, closed := pos.Split(size)
	commission := s.comm.Charge(size, price)
	pnl := -s.comm.PnL(closed, pos.Price, price)

	var delta float64
	if s.comm.Futures() {
		delta = s.comm.OperationCost(closed, pos.Price) - s.comm.OperationCost(opened, price) + pnl - commission
	} else {
		delta = -size*price - commission
	}
	if opened != 0 && s.cash+delta < 0 {
		s.finish(o, OrderStatusMargin)
		return
	}

	prevPrice := pos.Price
	s.cash += delta
	pos.Update(size, price)

	o.Status = OrderStatusFilled
	o.Executed = Execution{
		At:         at,
		Bar:        idx,
		Price:      price,
		Size:       size,
		Value:      s.comm.OperationCost(size, price),
		Commission: commission,
		PnL:        pnl,
	}
	s.queued = append(s.queued, *o)

	if closed != 0 {
		frac := math.Abs(closed) / math.Abs(size)
		t := s.openTrade(o.Symbol)
		t.update(closed, price, commission*frac, -s.comm.PnL(closed, prevPrice, price), at, idx)
		ev.Trades = append(ev.Trades, t.snapshot())
		if t.IsClosed {
			delete(s.trades, o.Symbol)
		}
	}
	if opened != 0 {
		frac := math.Abs(opened) / math.Abs(size)
		t := s.openTrade(o.Symbol)
		t.update(opened, price, commission*frac, 0, at, idx)
		ev.Trades = append(ev.Trades, t.snapshot())
	}

	// bracket bookkeeping
	for _, c := range o.children {
		c.activeFrom = idx + 1
	}
	if o.parent != nil {
		for _, sib := range o.parent.children {
			if sib != o && sib.Alive() {
				s.finish(sib, OrderStatusCancelled)
			}
		}
	}
}

func (s *Simulator) openTrade(symbol string) *Trade {
	if t, ok := s.trades[symbol]; ok {
		return t
	}
	s.tradeRef++
	t := newTrade(s.tradeRef, symbol)
	s.trades[symbol] = t
	return t
}

// finish ends an order without a fill and takes its children with it.
func (s *Simulator) finish(o *Order, status OrderStatus) {
	o.Status = status
	s.queued = append(s.queued, *o)
	for _, c := range o.children {
		if c.Alive() {
			s.finish(c, OrderStatusCancelled)
		}
	}
}

func (s *Simulator) prune() {
	live := s.orders[:0]
	for _, o := range s.orders {
		if o.Alive() {
			live = append(live, o)
		}
	}
	for i := len(live); i < len(s.orders); i++ {
		s.orders[i] = nil
	}
	s.orders = live
}

// OpenTrades returns the trades still open, ordered by ref.
func (s *Simulator) OpenTrades() []Trade {
	out := make([]Trade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}

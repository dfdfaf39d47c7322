package broker

import "math"

// CommissionInfo describes how fills are charged. A zero Margin is
// stock-like: Commission is a fraction of notional and cash pays the full
// notional. A positive Margin is futures-like: Commission is charged per
// unit, only Margin per unit is blocked and PnL is scaled by Mult.
type CommissionInfo struct {
	Commission float64
	Margin     float64
	Mult       float64
}

// Futures reports whether the futures model applies.
func (c CommissionInfo) Futures() bool { return c.Margin > 0 }

func (c CommissionInfo) mult() float64 {
	if !c.Futures() || c.Mult == 0 {
		return 1
	}
	return c.Mult
}

// Charge returns the commission for trading size units at price.
func (c CommissionInfo) Charge(size, price float64) float64 {
	if c.Futures() {
		return math.Abs(size) * c.Commission
	}
	return math.Abs(size) * price * c.Commission
}

// OperationCost returns the cash needed to hold size units bought at price.
func (c CommissionInfo) OperationCost(size, price float64) float64 {
	if c.Futures() {
		return math.Abs(size) * c.Margin
	}
	return math.Abs(size) * price
}

// PnL returns the profit of size units moving from price to newPrice.
func (c CommissionInfo) PnL(size, price, newPrice float64) float64 {
	return size * (newPrice - price) * c.mult()
}

// PositionValue returns the account value carried by an open position.
func (c CommissionInfo) PositionValue(size, price, close float64) float64 {
	if c.Futures() {
		return math.Abs(size)*c.Margin + c.PnL(size, price, close)
	}
	return size * close
}

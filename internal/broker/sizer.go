package broker

import "math"

// Sizer decides the order size when a request leaves it at zero.
type Sizer interface {
	Size(cash, price float64, side OrderSide, position float64) float64
}

// Stake buys whole units with 90% of the available cash. A sell reuses the
// last stake, or nothing when flat. A Stake is not safe for concurrent use.
type Stake struct {
	last float64
}

// Size implements Sizer.
func (s *Stake) Size(cash, price float64, side OrderSide, position float64) float64 {
	if side == OrderSideBuy {
		if price <= 0 {
			return 0
		}
		s.last = math.Floor(cash * 0.9 / price)
		return s.last
	}
	if position == 0 {
		return 0
	}
	return s.last
}

// Fixed always returns the same size.
type Fixed float64

// Size implements Sizer.
func (f Fixed) Size(float64, float64, OrderSide, float64) float64 { return float64(f) }

package broker

import "math"

// Position is the net holding in one symbol with its average entry price.
type Position struct {
	Symbol string
	Size   float64
	Price  float64
}

// Split returns how a fill of size would divide into units that close the
// current position and units that open new exposure.
func (p Position) Split(size float64) (opened, closed float64) {
	switch {
	case p.Size == 0 || math.Signbit(p.Size) == math.Signbit(size):
		return size, 0
	case math.Abs(size) <= math.Abs(p.Size):
		return 0, size
	default:
		return size + p.Size, -p.Size
	}
}

// Update applies a fill and returns the opened and closed units.
// Adding to a position averages the entry price. Reducing keeps it.
// A reversal restarts it at the fill price.
func (p *Position) Update(size, price float64) (opened, closed float64) {
	if size == 0 {
		return 0, 0
	}
	opened, closed = p.Split(size)
	switch {
	case closed == 0:
		total := p.Size*p.Price + opened*price
		p.Size += opened
		p.Price = total / p.Size
	case opened == 0:
		p.Size += closed
		if p.Size == 0 {
			p.Price = 0
		}
	default:
		p.Size = opened
		p.Price = price
	}
	return opened, closed
}

package analyzer

import (
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
)

// OrderSnapshot is a live order as seen at the end of a bar.
type OrderSnapshot struct {
	Date    time.Time
	Ref     int
	Status  string
	OrdType string
	Side    string
	Price   float64
	Size    float64
}

// OrderHistoryAnalyzer snapshots outstanding orders on every bar.
type OrderHistoryAnalyzer struct {
	base
	rows []OrderSnapshot
}

func NewOrderHistory() *OrderHistoryAnalyzer {
	return &OrderHistoryAnalyzer{base: base{name: OrderHistory}}
}

func (a *OrderHistoryAnalyzer) Next(env *backtest.Env) {
	for _, o := range env.Broker.Pending() {
		price := o.Price
		if o.StopPrice != 0 {
			price = o.StopPrice
		}
		a.rows = append(a.rows, OrderSnapshot{
			Date:    env.Now(),
			Ref:     o.Ref,
			Status:  string(o.Status),
			OrdType: string(o.Type),
			Side:    string(o.Side),
			Price:   price,
			Size:    o.Size,
		})
	}
}

// Analysis returns []OrderSnapshot.
func (a *OrderHistoryAnalyzer) Analysis() any { return a.rows }

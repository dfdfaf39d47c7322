package analyzer

import (
	"time"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
)

// Transaction is one fill.
type Transaction struct {
	Date   time.Time
	Units  float64
	Price  float64
	SID    int
	Ticker string
	Value  float64 // negative for cash paid
}

// TransactionLog records every fill in order.
type TransactionLog struct {
	base
	rows []Transaction
}

func NewTransactions() *TransactionLog {
	return &TransactionLog{base: base{name: Transactions}}
}

func (l *TransactionLog) NotifyOrder(env *backtest.Env, o broker.Order) {
	if o.Status != broker.OrderStatusFilled {
		return
	}
	l.rows = append(l.rows, Transaction{
		Date:   env.Now(),
		Units:  o.Executed.Size,
		Price:  o.Executed.Price,
		SID:    env.FeedIndex(o.Symbol),
		Ticker: o.Symbol,
		Value:  -o.Executed.Size * o.Executed.Price,
	})
}

// Analysis returns []Transaction.
func (l *TransactionLog) Analysis() any { return l.rows }

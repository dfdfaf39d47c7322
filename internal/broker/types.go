// Package broker provides the simulated broker used by the backtest engine.
package broker

import (
	"errors"
	"time"
)

// Broker-specific errors.
var (
	// ErrOrderNotFound indicates the order was not found.
	ErrOrderNotFound = errors.New("broker: order not found")
	// ErrInvalidSymbol indicates an invalid or empty symbol.
	ErrInvalidSymbol = errors.New("broker: invalid symbol")
	// ErrInvalidQuantity indicates an invalid quantity.
	ErrInvalidQuantity = errors.New("broker: invalid quantity")
	// ErrInvalidPrice indicates an invalid price for limit orders.
	ErrInvalidPrice = errors.New("broker: invalid price for limit order")
	// ErrInvalidStopPrice indicates an invalid stop price for stop orders.
	ErrInvalidStopPrice = errors.New("broker: invalid stop price for stop order")
	// ErrInvalidOrderType indicates an unsupported order type.
	ErrInvalidOrderType = errors.New("broker: invalid order type")
	// ErrOrderNotCancellable indicates the order cannot be cancelled.
	ErrOrderNotCancellable = errors.New("broker: order cannot be cancelled")
	// ErrNoPrice indicates no bar has been seen for the symbol yet.
	ErrNoPrice = errors.New("broker: no price for symbol")
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	// OrderSideBuy represents a buy order.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell represents a sell order.
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of order execution.
type OrderType string

const (
	// OrderTypeMarket executes at the next bar's open.
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeLimit executes at specified price or better.
	OrderTypeLimit OrderType = "LIMIT"
	// OrderTypeStop triggers when stop price is reached.
	OrderTypeStop OrderType = "STOP"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is waiting to be matched.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusFilled indicates order has been completely filled.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusCancelled indicates order was cancelled.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusMargin indicates there was not enough cash to fill the order.
	OrderStatusMargin OrderStatus = "MARGIN"
	// OrderStatusRejected indicates order was rejected by broker.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderRequest represents a request to place a new order.
type OrderRequest struct {
	// Symbol is the ticker symbol (e.g., "AAPL", "^GSPC").
	Symbol string `json:"symbol"`
	// Side indicates buy or sell.
	Side OrderSide `json:"side"`
	// Type specifies the order execution type.
	Type OrderType `json:"type"`
	// Size is the number of units to trade. Zero asks the sizer.
	Size float64 `json:"size"`
	// Price is the limit price (required for LIMIT orders).
	Price float64 `json:"price,omitempty"`
	// StopPrice is the trigger price (required for STOP orders).
	StopPrice float64 `json:"stop_price,omitempty"`
}

// Validate checks if the order request has valid required fields.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return ErrInvalidSymbol
	}
	if r.Size < 0 {
		return ErrInvalidQuantity
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.Price <= 0 {
			return ErrInvalidPrice
		}
	case OrderTypeStop:
		if r.StopPrice <= 0 {
			return ErrInvalidStopPrice
		}
	default:
		return ErrInvalidOrderType
	}
	return nil
}

// Execution describes how an order was filled.
type Execution struct {
	At         time.Time
	Bar        int
	Price      float64
	Size       float64 // signed: positive buys, negative sells
	Value      float64
	Commission float64
	PnL        float64
}

// Order represents an order in the simulator.
type Order struct {
	Ref       int
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Size      float64
	Price     float64
	StopPrice float64
	Status    OrderStatus
	// ParentRef is the bracket parent's ref, zero for standalone orders.
	ParentRef int
	CreatedAt time.Time
	CreatedBar int
	Executed  Execution

	parent     *Order
	children   []*Order
	activeFrom int
}

// IsBuy reports whether the order buys.
func (o Order) IsBuy() bool { return o.Side == OrderSideBuy }

// Alive reports whether the order can still fill.
func (o Order) Alive() bool { return o.Status == OrderStatusPending }

// Signed returns the order size with the side's sign.
func (o Order) Signed() float64 {
	if o.IsBuy() {
		return o.Size
	}
	return -o.Size
}

package exchange

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrOrderRejected    = errors.New("order rejected")
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign is +1 for buys and -1 for sells
func (s Side) Sign() int {
	if s == SideBuy {
		return 1
	}
	return -1
}

type Kind string

const (
	KindMarket    Kind = "market"
	KindLimit     Kind = "limit"
	KindBestPrice Kind = "bestprice"
)

type Status string

const (
	StatusNew             Status = "new"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// Order is a request sent to the exchange. Only limit orders rest; market
// and best-price orders come back already executed.
type Order struct {
	ID            string
	Side          Side
	Kind          Kind
	RequestedLots int
	LimitPrice    float64 // zero for market orders
	ExecutedLots  int
	ExecutedPrice float64
	Commission    float64
	CreatedAt     time.Time
}

// Filled reports whether the whole requested quantity executed
func (o *Order) Filled() bool {
	return o.ExecutedLots >= o.RequestedLots
}

// Apply copies execution details from a state query into the order
func (o *Order) Apply(st *OrderState) {
	if st == nil {
		return
	}
	o.ExecutedLots = st.ExecutedLots
	if st.ExecutedPrice > 0 {
		o.ExecutedPrice = st.ExecutedPrice
	}
	o.Commission = st.Commission
}

// OrderState is what the exchange reports about an order
type OrderState struct {
	ID            string
	Status        Status
	ExecutedLots  int
	ExecutedPrice float64
	Commission    float64
}

// Client is the exchange seen by a trading engine. Implementations exist for
// the live venue and for candle replay; strategy code must not tell them apart.
type Client interface {
	// CurrentPrice returns ErrPriceUnavailable when no quote is known
	CurrentPrice(ctx context.Context) (float64, error)
	// PlaceOrder returns an error wrapping ErrOrderRejected when the venue refuses
	PlaceOrder(ctx context.Context, lots int, side Side, price float64, kind Kind) (*Order, error)
	// CancelOrder reports whether the order was still resting and is now cancelled
	CancelOrder(ctx context.Context, order *Order) (bool, error)
	// OrderExecuted reports whether the order fully executed, plus the latest state
	OrderExecuted(ctx context.Context, order *Order) (bool, *OrderState, error)
	ActiveOrders(ctx context.Context) ([]Order, error)
	// InstrumentCount is the signed position in lots held on the venue
	InstrumentCount(ctx context.Context) (int, error)
	RoundToTick(price float64) float64
	TradingIsOpen(ctx context.Context) bool
}

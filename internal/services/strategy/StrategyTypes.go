package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/orderbook"
)

// Policy decides which ladder orders rest on the exchange. The engine calls
// it once per iteration, in this order: UpdateOrderStatus,
// CancelOrdersBeyondThreshold, PlaceBuyOrders, PlaceSellOrders.
type Policy interface {
	Name() grid.PolicyKind
	OnDayStart(ctx context.Context, price float64) error
	UpdateOrderStatus(ctx context.Context)
	PlaceBuyOrders(ctx context.Context, price float64)
	PlaceSellOrders(ctx context.Context, price float64)
	CancelOrdersBeyondThreshold(ctx context.Context, price float64)
	CancelAll(ctx context.Context)
	CurrentProfit(price float64) float64
	ShouldLiquidateOnStop() bool
}

// Deps are the collaborators one policy instance works with. None of them
// may be shared with another engine.
type Deps struct {
	Config     grid.Config
	Client     exchange.Client
	Book       *orderbook.Book
	Accounting *accounting.Accounting
	Executor   *Executor
	Log        *logrus.Entry
}

func (d Deps) validate() error {
	if d.Client == nil {
		return errors.New("client cannot be nil")
	}
	if d.Book == nil {
		return errors.New("order book cannot be nil")
	}
	if d.Accounting == nil {
		return errors.New("accounting cannot be nil")
	}
	if d.Executor == nil {
		return errors.New("executor cannot be nil")
	}
	return nil
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration)

// ContextSleep is the wall-clock SleepFunc
func ContextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// priceEps absorbs float noise when comparing ladder prices
const priceEps = 1e-9

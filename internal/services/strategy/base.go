package strategy

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/orderbook"
)

// base holds the reconciliation and cancellation logic every policy shares
type base struct {
	cfg    grid.Config
	client exchange.Client
	book   *orderbook.Book
	acc    *accounting.Accounting
	exec   *Executor
	log    *logrus.Entry

	lastFill float64
}

func newBase(d Deps) base {
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return base{
		cfg:    d.Config,
		client: d.Client,
		book:   d.Book,
		acc:    d.Accounting,
		exec:   d.Executor,
		log:    log.WithField("policy", d.Config.Policy),
	}
}

func (b *base) Name() grid.PolicyKind { return b.cfg.Policy }

func (b *base) CurrentProfit(price float64) float64 {
	return b.acc.Profit(price)
}

func (b *base) ShouldLiquidateOnStop() bool { return false }

// reconcile compares the book with the exchange's active orders and books
// every tracked order that left it. Returns the orders that fully executed.
func (b *base) reconcile(ctx context.Context) []*exchange.Order {
	if b.book.Len() == 0 {
		return nil
	}

	active, err := b.client.ActiveOrders(ctx)
	if err != nil {
		b.log.WithError(err).Warn("active orders unavailable, skipping reconciliation")
		return nil
	}

	var fills []*exchange.Order
	for _, o := range b.book.Missing(active) {
		executed, st, err := b.client.OrderExecuted(ctx, o)
		if err != nil {
			b.log.WithError(err).WithField("order", o.ID).Warn("order state unavailable")
			continue
		}
		o.Apply(st)

		if executed {
			b.book.Remove(o.ID)
			b.acc.ApplyFilled(ctx, o)
			b.lastFill = fillPrice(o)
			b.log.WithFields(logrus.Fields{
				"order": o.ID,
				"side":  o.Side,
				"lots":  o.ExecutedLots,
				"price": b.lastFill,
			}).Info("order filled")
			fills = append(fills, o)
			continue
		}

		// a stale snapshot can miss an order that is still resting
		if st != nil && (st.Status == exchange.StatusNew || st.Status == exchange.StatusPartiallyFilled) {
			continue
		}

		// cancelled outside the engine
		b.book.Remove(o.ID)
		b.settleCancelled(ctx, o)
	}
	return fills
}

// cancelOrder cancels a resting order. A refused cancel leaves the order in
// the book for the next reconciliation to resolve. So does a cancel whose
// execution cannot be read back: reconcile settles it once the state is known.
func (b *base) cancelOrder(ctx context.Context, o *exchange.Order) bool {
	ok, err := b.client.CancelOrder(ctx, o)
	if err != nil {
		b.log.WithError(err).WithField("order", o.ID).Warn("cancel failed")
		return false
	}
	if !ok {
		return false
	}

	_, st, err := b.client.OrderExecuted(ctx, o)
	if err != nil {
		b.log.WithError(err).WithField("order", o.ID).Warn("state of cancelled order unavailable, settling later")
		return true
	}
	o.Apply(st)
	b.book.Remove(o.ID)
	b.settleCancelled(ctx, o)
	return true
}

// settleCancelled books a partial execution and trades it back at market so
// the position is what it was before the order was placed
func (b *base) settleCancelled(ctx context.Context, o *exchange.Order) {
	if o.ExecutedLots <= 0 {
		return
	}
	b.acc.ApplyCancelled(ctx, o)
	b.log.WithFields(logrus.Fields{
		"order": o.ID,
		"side":  o.Side,
		"lots":  o.ExecutedLots,
	}).Info("compensating partial fill")
	b.exec.Market(ctx, o.ExecutedLots, o.Side.Opposite())
}

// cancelBeyondThreshold drops resting orders that drifted too far from price
func (b *base) cancelBeyondThreshold(ctx context.Context, price float64) {
	step := b.cfg.StepSize
	if b.cfg.BuyThresholdSteps > 0 {
		limit := price - step*float64(b.cfg.BuyThresholdSteps)
		for _, o := range b.book.Buys() {
			if o.LimitPrice <= limit+priceEps {
				b.cancelOrder(ctx, o)
			}
		}
	}
	if b.cfg.SellThresholdSteps > 0 {
		limit := price + step*float64(b.cfg.SellThresholdSteps)
		for _, o := range b.book.Sells() {
			if o.LimitPrice >= limit-priceEps {
				b.cancelOrder(ctx, o)
			}
		}
	}
}

func (b *base) CancelAll(ctx context.Context) {
	for _, o := range b.book.All() {
		b.cancelOrder(ctx, o)
	}
	// one more read for cancels whose execution was unknown
	if b.book.Len() > 0 {
		b.reconcile(ctx)
	}
}

// buyRoom is how many more lots may be bought without breaching MaxLots
// once every resting buy fills
func (b *base) buyRoom() int {
	return b.cfg.MaxLots() - b.acc.NetLots() - b.book.RestingLots(exchange.SideBuy)
}

// sellRoom is the symmetric bound against MinLots
func (b *base) sellRoom() int {
	return b.acc.NetLots() - b.book.RestingLots(exchange.SideSell) - b.cfg.MinLots()
}

// placeLimit rests one rung at price if the position bounds allow it
func (b *base) placeLimit(ctx context.Context, side exchange.Side, price float64) bool {
	lots := b.cfg.OrderLots
	if price <= 0 {
		return false
	}
	if side == exchange.SideBuy {
		if b.buyRoom() < lots || b.book.HasBuyAt(price) {
			return false
		}
	} else {
		if b.sellRoom() < lots || b.book.HasSellAt(price) {
			return false
		}
	}

	o := b.exec.Limit(ctx, lots, side, price)
	if o == nil {
		return false
	}
	if o.Filled() {
		b.acc.ApplyFilled(ctx, o)
		b.lastFill = price
		return true
	}
	if err := b.book.Add(o); err != nil {
		b.log.WithError(err).WithField("order", o.ID).Error("failed to track order")
		return false
	}
	return true
}

func fillPrice(o *exchange.Order) float64 {
	if o.ExecutedPrice > 0 {
		return o.ExecutedPrice
	}
	return o.LimitPrice
}

func (b *base) round(price float64) float64 {
	return b.client.RoundToTick(price)
}

// floorStep and ceilStep snap price onto the step grid strictly below/above it
func floorStep(price, step float64) float64 {
	p := math.Floor(price/step+priceEps) * step
	if p >= price-priceEps {
		p -= step
	}
	return p
}

func ceilStep(price, step float64) float64 {
	p := math.Ceil(price/step-priceEps) * step
	if p <= price+priceEps {
		p += step
	}
	return p
}

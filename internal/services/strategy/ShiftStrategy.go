package strategy

import (
	"context"
	"math"

	"GridTradeBot/internal/services/exchange"
)

// Shift ladders away from the last fill. Rung k sits a further
// StepSize*(1+StepSizeShift*k) from rung k-1. Any fill rebuilds both sides.
type Shift struct {
	base

	boughtPrice float64
	soldPrice   float64
	lastPrice   float64
}

func NewShift(d Deps) *Shift {
	return &Shift{base: newBase(d)}
}

func (s *Shift) OnDayStart(ctx context.Context, price float64) error {
	s.boughtPrice, s.soldPrice = 0, 0
	s.lastPrice = price
	return nil
}

func (s *Shift) UpdateOrderStatus(ctx context.Context) {
	fills := s.reconcile(ctx)
	if len(fills) == 0 {
		return
	}

	last := s.nearestFill(ctx, fills)
	price := fillPrice(last)
	if last.Side == exchange.SideBuy {
		s.boughtPrice, s.soldPrice = price, 0
	} else {
		s.soldPrice, s.boughtPrice = price, 0
	}
	s.CancelAll(ctx)
}

// nearestFill picks the anchor when several orders filled in one pass: the
// fill closest to the current price, which the market reached last. Without a
// quote the last placement price stands in. Ties go to the earlier fill.
func (s *Shift) nearestFill(ctx context.Context, fills []*exchange.Order) *exchange.Order {
	ref := s.lastPrice
	if p, err := s.client.CurrentPrice(ctx); err == nil && p > 0 {
		ref = p
	}
	best := fills[len(fills)-1]
	if ref <= 0 {
		return best
	}
	best = fills[0]
	for _, o := range fills[1:] {
		if math.Abs(fillPrice(o)-ref) < math.Abs(fillPrice(best)-ref)-priceEps {
			best = o
		}
	}
	return best
}

func (s *Shift) CancelOrdersBeyondThreshold(ctx context.Context, price float64) {
	s.cancelBeyondThreshold(ctx, price)
}

func (s *Shift) anchor(price float64) float64 {
	if s.boughtPrice > 0 {
		return s.boughtPrice
	}
	if s.soldPrice > 0 {
		return s.soldPrice
	}
	return price
}

// rung returns the offset of the k-th rung from the anchor
func (s *Shift) rung(k int) float64 {
	offset := 0.0
	for j := 0; j <= k; j++ {
		offset += s.cfg.StepSize * (1 + s.cfg.StepSizeShift*float64(j))
	}
	return offset
}

func (s *Shift) PlaceBuyOrders(ctx context.Context, price float64) {
	s.lastPrice = price
	anchor := s.anchor(price)
	for k := 0; k < s.cfg.MaxSteps && len(s.book.Buys()) < s.cfg.SetOrdersCount; k++ {
		p := s.round(anchor - s.rung(k))
		if p <= 0 {
			return
		}
		if p >= price-priceEps || s.book.HasBuyAt(p) {
			continue
		}
		if s.buyRoom() < s.cfg.OrderLots {
			return
		}
		s.placeLimit(ctx, exchange.SideBuy, p)
	}
}

func (s *Shift) PlaceSellOrders(ctx context.Context, price float64) {
	anchor := s.anchor(price)
	for k := 0; k < s.cfg.MaxSteps && len(s.book.Sells()) < s.cfg.SetOrdersCount; k++ {
		p := s.round(anchor + s.rung(k))
		if p <= price+priceEps || s.book.HasSellAt(p) {
			continue
		}
		if s.sellRoom() < s.cfg.OrderLots {
			return
		}
		s.placeLimit(ctx, exchange.SideSell, p)
	}
}

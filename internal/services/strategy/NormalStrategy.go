package strategy

import (
	"context"

	"GridTradeBot/internal/services/exchange"
)

// Normal keeps the SetOrdersCount nearest step-grid rungs on each side of
// the price. A buy fill is answered with a sell one step above it.
type Normal struct {
	base
}

func NewNormal(d Deps) *Normal {
	return &Normal{base: newBase(d)}
}

func (s *Normal) OnDayStart(ctx context.Context, price float64) error {
	return nil
}

func (s *Normal) UpdateOrderStatus(ctx context.Context) {
	for _, o := range s.reconcile(ctx) {
		if o.Side != exchange.SideBuy {
			// sell fills wait for the next placement pass
			continue
		}
		price := s.round(fillPrice(o) + s.cfg.StepSize)
		s.placeLimit(ctx, exchange.SideSell, price)
	}
}

func (s *Normal) CancelOrdersBeyondThreshold(ctx context.Context, price float64) {
	s.cancelBeyondThreshold(ctx, price)
}

func (s *Normal) PlaceBuyOrders(ctx context.Context, price float64) {
	step := s.cfg.StepSize
	start := floorStep(price, step)
	for i := 0; i < s.cfg.SetOrdersCount; i++ {
		p := s.round(start - float64(i)*step)
		if p <= 0 {
			return
		}
		if s.book.HasBuyAt(p) {
			continue
		}
		if s.buyRoom() < s.cfg.OrderLots {
			return
		}
		s.placeLimit(ctx, exchange.SideBuy, p)
	}
}

func (s *Normal) PlaceSellOrders(ctx context.Context, price float64) {
	step := s.cfg.StepSize
	start := ceilStep(price, step)
	for i := 0; i < s.cfg.SetOrdersCount; i++ {
		p := s.round(start + float64(i)*step)
		if s.book.HasSellAt(p) {
			continue
		}
		if s.sellRoom() < s.cfg.OrderLots {
			return
		}
		s.placeLimit(ctx, exchange.SideSell, p)
	}
}

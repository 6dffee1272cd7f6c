package strategy

import (
	"context"
	"fmt"
	"math"

	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
)

// fanRange bounds the levels considered around the current price
const fanRange = 0.1

// Fan fixes its ladder at day start and keeps the SetOrdersCount levels
// nearest to the current price and last fill. It flattens at the close.
type Fan struct {
	base

	levels []float64
}

func NewFan(d Deps) *Fan {
	return &Fan{base: newBase(d)}
}

func (s *Fan) ShouldLiquidateOnStop() bool { return true }

func (s *Fan) OnDayStart(ctx context.Context, price float64) error {
	levels, err := grid.LadderLevels(price, s.cfg.StepSize, s.cfg.StepSizeShift, s.cfg.MaxSteps, grid.RoundFunc(s.client.RoundToTick))
	if err != nil {
		return fmt.Errorf("failed to build fan ladder: %w", err)
	}
	s.levels = levels
	s.lastFill = 0
	s.log.WithField("levels", len(levels)).Debug("fan ladder built")
	return nil
}

// Levels returns the ladder built at day start
func (s *Fan) Levels() []float64 {
	return append([]float64(nil), s.levels...)
}

func (s *Fan) UpdateOrderStatus(ctx context.Context) {
	s.reconcile(ctx)
}

func (s *Fan) bounds(price float64) (low, high float64) {
	low, high = price, price
	if s.lastFill > 0 {
		low = math.Min(low, s.lastFill)
		high = math.Max(high, s.lastFill)
	}
	return low, high
}

// required returns the target buy levels (descending) and sell levels (ascending)
func (s *Fan) required(price float64) (buys, sells []float64) {
	low, high := s.bounds(price)
	lower, upper := price*(1-fanRange), price*(1+fanRange)

	for i := len(s.levels) - 1; i >= 0 && len(buys) < s.cfg.SetOrdersCount; i-- {
		l := s.levels[i]
		if l < lower-priceEps {
			break
		}
		if l < low-priceEps {
			buys = append(buys, l)
		}
	}
	for _, l := range s.levels {
		if len(sells) >= s.cfg.SetOrdersCount || l > upper+priceEps {
			break
		}
		if l > high+priceEps {
			sells = append(sells, l)
		}
	}
	return buys, sells
}

func (s *Fan) CancelOrdersBeyondThreshold(ctx context.Context, price float64) {
	s.cancelBeyondThreshold(ctx, price)

	buys, sells := s.required(price)
	for _, o := range s.book.Buys() {
		if !contains(buys, o.LimitPrice) {
			s.cancelOrder(ctx, o)
		}
	}
	for _, o := range s.book.Sells() {
		if !contains(sells, o.LimitPrice) {
			s.cancelOrder(ctx, o)
		}
	}
}

func (s *Fan) PlaceBuyOrders(ctx context.Context, price float64) {
	buys, _ := s.required(price)
	for _, p := range buys {
		if s.book.HasBuyAt(p) {
			continue
		}
		if s.buyRoom() < s.cfg.OrderLots {
			return
		}
		s.placeLimit(ctx, exchange.SideBuy, p)
	}
}

func (s *Fan) PlaceSellOrders(ctx context.Context, price float64) {
	_, sells := s.required(price)
	for _, p := range sells {
		if s.book.HasSellAt(p) {
			continue
		}
		if s.sellRoom() < s.cfg.OrderLots {
			return
		}
		s.placeLimit(ctx, exchange.SideSell, p)
	}
}

func contains(prices []float64, p float64) bool {
	for _, q := range prices {
		if grid.SamePrice(p, q) {
			return true
		}
	}
	return false
}

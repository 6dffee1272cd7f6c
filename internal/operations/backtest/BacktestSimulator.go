package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"GridTradeBot/internal/models"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
)

// Simulator is an exchange fed one minute candle at a time. Resting limit
// orders execute at their limit price as soon as a bar trades through it;
// market orders execute at the last close.
type Simulator struct {
	inst       grid.Instrument
	commission float64

	price    float64
	now      time.Time
	position int

	resting map[string]*exchange.Order
	done    map[string]*exchange.OrderState
}

func NewSimulator(inst grid.Instrument, commission float64, startLots int) *Simulator {
	return &Simulator{
		inst:       inst,
		commission: commission,
		position:   startLots,
		resting:    make(map[string]*exchange.Order),
		done:       make(map[string]*exchange.OrderState),
	}
}

// Feed executes resting orders touched by the bar, then moves the price to its close
func (s *Simulator) Feed(c models.Candle) {
	for id, o := range s.resting {
		touched := (o.Side == exchange.SideBuy && c.Low <= o.LimitPrice) ||
			(o.Side == exchange.SideSell && c.High >= o.LimitPrice)
		if touched {
			s.execute(o, o.LimitPrice)
			delete(s.resting, id)
		}
	}
	s.price = c.Close
	s.now = c.OpenTime
}

func (s *Simulator) execute(o *exchange.Order, price float64) {
	o.ExecutedLots = o.RequestedLots
	o.ExecutedPrice = price
	o.Commission = s.commission * price * float64(o.RequestedLots) * s.inst.Lot()
	s.position += o.Side.Sign() * o.RequestedLots
	s.done[o.ID] = &exchange.OrderState{
		ID:            o.ID,
		Status:        exchange.StatusFilled,
		ExecutedLots:  o.ExecutedLots,
		ExecutedPrice: price,
		Commission:    o.Commission,
	}
}

func (s *Simulator) CurrentPrice(context.Context) (float64, error) {
	if s.price <= 0 {
		return 0, exchange.ErrPriceUnavailable
	}
	return s.price, nil
}

func (s *Simulator) PlaceOrder(_ context.Context, lots int, side exchange.Side, price float64, kind exchange.Kind) (*exchange.Order, error) {
	if lots <= 0 {
		return nil, fmt.Errorf("%w: %d lots", exchange.ErrOrderRejected, lots)
	}
	if s.price <= 0 {
		return nil, fmt.Errorf("%w: no market price", exchange.ErrOrderRejected)
	}

	o := &exchange.Order{
		ID:            uuid.NewString(),
		Side:          side,
		Kind:          kind,
		RequestedLots: lots,
		CreatedAt:     s.now,
	}

	if kind != exchange.KindLimit {
		s.execute(o, s.price)
		return o, nil
	}

	o.LimitPrice = s.inst.Round(price)
	if o.LimitPrice <= 0 {
		return nil, fmt.Errorf("%w: price %v", exchange.ErrOrderRejected, price)
	}
	marketable := (side == exchange.SideBuy && o.LimitPrice >= s.price) ||
		(side == exchange.SideSell && o.LimitPrice <= s.price)
	if marketable {
		s.execute(o, s.price)
		return o, nil
	}

	s.resting[o.ID] = o
	return o, nil
}

func (s *Simulator) CancelOrder(_ context.Context, o *exchange.Order) (bool, error) {
	if _, ok := s.resting[o.ID]; !ok {
		return false, nil
	}
	delete(s.resting, o.ID)
	s.done[o.ID] = &exchange.OrderState{ID: o.ID, Status: exchange.StatusCancelled}
	return true, nil
}

func (s *Simulator) OrderExecuted(_ context.Context, o *exchange.Order) (bool, *exchange.OrderState, error) {
	if _, ok := s.resting[o.ID]; ok {
		return false, &exchange.OrderState{ID: o.ID, Status: exchange.StatusNew}, nil
	}
	st, ok := s.done[o.ID]
	if !ok {
		return false, nil, fmt.Errorf("unknown order %s", o.ID)
	}
	return st.Status == exchange.StatusFilled, st, nil
}

func (s *Simulator) ActiveOrders(context.Context) ([]exchange.Order, error) {
	out := make([]exchange.Order, 0, len(s.resting))
	for _, o := range s.resting {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Simulator) InstrumentCount(context.Context) (int, error) {
	return s.position, nil
}

func (s *Simulator) RoundToTick(price float64) float64 {
	return s.inst.Round(price)
}

func (s *Simulator) TradingIsOpen(context.Context) bool {
	return true
}

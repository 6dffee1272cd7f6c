package accounting

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/services/exchange"
)

// Deal is one execution, or one failed attempt, booked by the engine
type Deal struct {
	Time       time.Time
	OrderID    string
	Side       exchange.Side
	Kind       exchange.Kind
	Lots       int
	Price      float64
	Commission float64
	Partial    bool // executed part of a cancelled order
	Failed     bool // order could not be placed
}

// DealSink persists deals as they are booked
type DealSink interface {
	SaveDeal(ctx context.Context, deal Deal) error
}

type Option func(*Accounting)

func WithSink(sink DealSink) Option {
	return func(a *Accounting) { a.sink = sink }
}

func WithLogger(log *logrus.Entry) Option {
	return func(a *Accounting) { a.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(a *Accounting) { a.now = now }
}

// Accounting is the only place the net position and cash flow change.
// Policies read it and hand it executed orders; they never write fields.
type Accounting struct {
	lotSize     float64
	netLots     int
	realizedSum float64
	operations  int
	errors      int
	deals       []Deal

	startLots  int
	startPrice float64

	sink DealSink
	log  *logrus.Entry
	now  func() time.Time
}

func New(startLots int, lotSize float64, opts ...Option) *Accounting {
	if lotSize <= 0 {
		lotSize = 1
	}
	a := &Accounting{
		lotSize:   lotSize,
		netLots:   startLots,
		startLots: startLots,
		log:       logrus.NewEntry(logger.Log),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetStart marks the position and price the day's profit is measured from
func (a *Accounting) SetStart(price float64) {
	a.startLots = a.netLots
	a.startPrice = price
}

// ApplyFilled books the executed part of an order
func (a *Accounting) ApplyFilled(ctx context.Context, o *exchange.Order) {
	a.book(ctx, o, false)
}

// ApplyCancelled books whatever a cancelled order managed to execute
func (a *Accounting) ApplyCancelled(ctx context.Context, o *exchange.Order) {
	a.book(ctx, o, true)
}

func (a *Accounting) book(ctx context.Context, o *exchange.Order, partial bool) {
	if o == nil || o.ExecutedLots <= 0 {
		return
	}
	price := o.ExecutedPrice
	if price <= 0 {
		price = o.LimitPrice
	}

	sign := o.Side.Sign()
	a.netLots += sign * o.ExecutedLots
	a.realizedSum -= float64(sign*o.ExecutedLots)*price*a.lotSize + o.Commission
	a.operations++

	a.commit(ctx, Deal{
		Time:       a.now(),
		OrderID:    o.ID,
		Side:       o.Side,
		Kind:       o.Kind,
		Lots:       o.ExecutedLots,
		Price:      price,
		Commission: o.Commission,
		Partial:    partial,
	})
}

// RecordFailure books an order that could not be placed
func (a *Accounting) RecordFailure(ctx context.Context, side exchange.Side, lots int, price float64) {
	a.errors++
	a.commit(ctx, Deal{
		Time:   a.now(),
		Side:   side,
		Lots:   lots,
		Price:  price,
		Failed: true,
	})
}

func (a *Accounting) commit(ctx context.Context, d Deal) {
	a.deals = append(a.deals, d)
	if a.sink == nil {
		return
	}
	if err := a.sink.SaveDeal(ctx, d); err != nil {
		a.log.WithError(err).Warn("failed to persist deal")
	}
}

// Profit is the day's result if the position were valued at price
func (a *Accounting) Profit(price float64) float64 {
	return a.realizedSum +
		float64(a.netLots)*price*a.lotSize -
		float64(a.startLots)*a.startPrice*a.lotSize
}

func (a *Accounting) NetLots() int { return a.netLots }
func (a *Accounting) RealizedSum() float64 { return a.realizedSum }
func (a *Accounting) Operations() int { return a.operations }
func (a *Accounting) Errors() int { return a.errors }
func (a *Accounting) StartLots() int { return a.startLots }
func (a *Accounting) StartPrice() float64 { return a.startPrice }
func (a *Accounting) LotSize() float64 { return a.lotSize }

func (a *Accounting) Deals() []Deal {
	out := make([]Deal, len(a.deals))
	copy(out, a.deals)
	return out
}

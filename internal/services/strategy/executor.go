package strategy

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/exchange"
)

const (
	DefaultAttempts        = 2
	DefaultStartupAttempts = 5
)

// Executor places orders with a bounded fixed-backoff retry. When every
// attempt fails it books a failure and gives up for that call.
type Executor struct {
	client  exchange.Client
	acc     *accounting.Accounting
	sleep   SleepFunc
	backoff time.Duration
	log     *logrus.Entry

	attempts        int
	startupAttempts int
	startup         bool
}

func NewExecutor(client exchange.Client, acc *accounting.Accounting, backoff time.Duration, sleep SleepFunc, log *logrus.Entry) *Executor {
	if sleep == nil {
		sleep = ContextSleep
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{
		client:          client,
		acc:             acc,
		sleep:           sleep,
		backoff:         backoff,
		log:             log,
		attempts:        DefaultAttempts,
		startupAttempts: DefaultStartupAttempts,
	}
}

// SetStartup switches to the larger retry budget used while opening the day
func (e *Executor) SetStartup(on bool) {
	e.startup = on
}

// Market sends a market order and books its execution
func (e *Executor) Market(ctx context.Context, lots int, side exchange.Side) *exchange.Order {
	o := e.place(ctx, lots, side, 0, exchange.KindMarket)
	if o != nil {
		e.acc.ApplyFilled(ctx, o)
	}
	return o
}

// Limit sends a limit order. The caller decides where it is tracked.
func (e *Executor) Limit(ctx context.Context, lots int, side exchange.Side, price float64) *exchange.Order {
	return e.place(ctx, lots, side, price, exchange.KindLimit)
}

func (e *Executor) place(ctx context.Context, lots int, side exchange.Side, price float64, kind exchange.Kind) *exchange.Order {
	if lots <= 0 {
		return nil
	}

	attempts := e.attempts
	if e.startup {
		attempts = e.startupAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		o, err := e.client.PlaceOrder(ctx, lots, side, price, kind)
		if err == nil && o != nil {
			return o
		}

		e.log.WithFields(logrus.Fields{
			"side":    side,
			"kind":    kind,
			"lots":    lots,
			"price":   price,
			"attempt": attempt,
		}).WithError(err).Warn("order placement failed")

		if ctx.Err() != nil || attempt == attempts {
			break
		}
		e.sleep(ctx, e.backoff)
	}

	e.acc.RecordFailure(ctx, side, lots, e.bestKnownPrice(ctx, price))
	return nil
}

func (e *Executor) bestKnownPrice(ctx context.Context, price float64) float64 {
	if price > 0 {
		return price
	}
	if p, err := e.client.CurrentPrice(ctx); err == nil {
		return p
	}
	return 0
}

package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/orderbook"
	"GridTradeBot/internal/services/strategy"
)

// Engine drives one policy on one instrument through a trading day.
// It is single threaded: Iterate, Stop and Run must not be called
// concurrently.
type Engine struct {
	cfg    grid.Config
	client exchange.Client
	policy strategy.Policy
	book   *orderbook.Book
	acc    *accounting.Accounting
	exec   *strategy.Executor
	opts   Options
	log    *logrus.Entry

	state      State
	price      float64
	startPrice float64
	priceSeen  bool
	exitCode   ExitCode
}

func NewEngine(cfg grid.Config, client exchange.Client, startLots int, opts Options) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	opts.setDefaults()

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logger.Log)
	}
	log = log.WithFields(logrus.Fields{"symbol": cfg.Symbol, "policy": cfg.Policy})
	if opts.RunID != 0 {
		log = log.WithField("run", opts.RunID)
	}

	accOpts := []accounting.Option{accounting.WithLogger(log), accounting.WithClock(opts.Clock.Now)}
	if opts.DealSink != nil {
		accOpts = append(accOpts, accounting.WithSink(opts.DealSink))
	}
	acc := accounting.New(startLots, opts.LotSize, accOpts...)
	exec := strategy.NewExecutor(client, acc, opts.RetryBackoff, opts.Clock.Sleep, log)
	book := orderbook.New()

	policy, err := strategy.New(strategy.Deps{
		Config:     cfg,
		Client:     client,
		Book:       book,
		Accounting: acc,
		Executor:   exec,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:    cfg,
		client: client,
		policy: policy,
		book:   book,
		acc:    acc,
		exec:   exec,
		opts:   opts,
		log:    log,
		state:  StateNew,
	}, nil
}

func (e *Engine) State() State { return e.state }
func (e *Engine) Config() grid.Config { return e.cfg }
func (e *Engine) Accounting() *accounting.Accounting { return e.acc }
func (e *Engine) Book() *orderbook.Book { return e.book }

// Iterate runs one polling step and returns how long to wait before the next
func (e *Engine) Iterate(ctx context.Context) time.Duration {
	if e.state == StateFinished {
		return 0
	}

	now := e.opts.Clock.Now().In(e.opts.Location)
	start, end := e.window(now)
	if now.Before(start) || !now.Before(end) {
		if e.state == StateWorking && !now.Before(end) {
			e.EndSession(ctx)
			return 0
		}
		next := start
		if !now.Before(end) {
			next = start.AddDate(0, 0, 1)
		}
		if wait := next.Sub(now) / 2; wait > minOffHoursSleep {
			return wait
		}
		return minOffHoursSleep
	}

	if !e.client.TradingIsOpen(ctx) {
		return e.opts.SleepTrading
	}

	e.refreshPrice(ctx)

	if e.state == StateNew {
		if e.price <= 0 {
			// commands still apply before the first price
			if e.applyCommands(ctx) {
				return 0
			}
			e.log.Warn("no price yet, postponing day start")
			return e.opts.SleepTrading
		}
		if err := e.startDay(ctx); err != nil {
			e.log.WithError(err).Error("day start failed")
			e.Stop(ctx, false, ExitError)
			return 0
		}
	}

	e.policy.UpdateOrderStatus(ctx)

	if e.applyCommands(ctx) {
		return 0
	}
	if e.checkStops(ctx) {
		return 0
	}

	if e.price > 0 {
		e.policy.CancelOrdersBeyondThreshold(ctx, e.price)
		e.policy.PlaceBuyOrders(ctx, e.price)
		e.policy.PlaceSellOrders(ctx, e.price)
	}

	e.record(ctx)
	return e.opts.SleepTrading
}

func (e *Engine) window(now time.Time) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := e.opts.SessionEnd
	if end <= 0 {
		end = 24 * time.Hour
	}
	return midnight.Add(e.opts.SessionStart), midnight.Add(end)
}

func (e *Engine) refreshPrice(ctx context.Context) {
	p, err := e.client.CurrentPrice(ctx)
	if err != nil || p <= 0 {
		e.log.WithError(err).Warn("price unavailable, using cached price")
		return
	}
	e.price = p
	e.priceSeen = true
}

// startDay moves the position to BaseSteps and hands control to the policy
func (e *Engine) startDay(ctx context.Context) error {
	e.startPrice = e.price
	e.acc.SetStart(e.price)

	e.exec.SetStartup(true)
	defer e.exec.SetStartup(false)

	if err := e.policy.OnDayStart(ctx, e.price); err != nil {
		return err
	}

	delta := e.cfg.BaseLots() - e.acc.NetLots()
	switch {
	case delta > 0:
		e.exec.Market(ctx, delta, exchange.SideBuy)
	case delta < 0 && e.cfg.MajorityTrade:
		e.exec.Market(ctx, -delta, exchange.SideSell)
	}

	e.state = StateWorking
	e.log.WithFields(logrus.Fields{
		"price": e.price,
		"lots":  e.acc.NetLots(),
	}).Info("trading day started")
	return nil
}

// applyCommands reports whether a command finished the engine
func (e *Engine) applyCommands(ctx context.Context) bool {
	if e.opts.Commands == nil {
		return false
	}
	cmds, err := e.opts.Commands.Pending(ctx, e.opts.RunID)
	if err != nil {
		e.log.WithError(err).Warn("failed to read commands")
		return false
	}

	for _, cmd := range cmds {
		var cmdErr error
		switch cmd.Kind {
		case CommandStop:
			e.Stop(ctx, false, ExitCommand)
		case CommandStopLiquidate:
			e.Stop(ctx, true, ExitCommand)
		default:
			cmdErr = fmt.Errorf("unknown command %q", cmd.Kind)
		}
		if err := e.opts.Commands.Complete(ctx, cmd, cmdErr); err != nil {
			e.log.WithError(err).WithField("command", cmd.ID).Warn("failed to complete command")
		}
	}
	return e.state == StateFinished
}

// checkStops reports whether a stop-loss or take-profit finished the engine
func (e *Engine) checkStops(ctx context.Context) bool {
	if e.price <= 0 {
		return false
	}
	profit := e.policy.CurrentProfit(e.price)
	depo := e.cfg.Depo(e.startPrice, e.opts.LotSize)

	if e.cfg.StopDownPct > 0 && profit < -depo*e.cfg.StopDownPct {
		e.log.WithField("profit", profit).Warn("stop loss triggered")
		e.Stop(ctx, true, ExitStopLoss)
		return true
	}
	if e.cfg.StopUpPct > 0 && profit > depo*e.cfg.StopUpPct {
		e.log.WithField("profit", profit).Info("take profit triggered")
		e.Stop(ctx, true, ExitTakeProfit)
		return true
	}
	return false
}

// Stop cancels the ladder, optionally flattens a long position, always
// covers a short one, and finishes the engine. Repeat calls do nothing.
func (e *Engine) Stop(ctx context.Context, toZero bool, code ExitCode) {
	if e.state == StateFinished {
		return
	}

	e.policy.CancelAll(ctx)
	if net := e.acc.NetLots(); toZero && net > 0 {
		e.exec.Market(ctx, net, exchange.SideSell)
	}
	if net := e.acc.NetLots(); net < 0 {
		e.exec.Market(ctx, -net, exchange.SideBuy)
	}

	e.refreshPrice(ctx)
	e.state = StateFinished
	e.exitCode = code

	e.record(ctx)
	e.log.WithField("exit", code).Info(e.Summary().String())
}

// EndSession stops the engine the way the close of the trading window does
func (e *Engine) EndSession(ctx context.Context) {
	e.Stop(ctx, e.policy.ShouldLiquidateOnStop(), ExitSessionEnd)
}

// Summary describes the engine's result so far
func (e *Engine) Summary() Summary {
	return Summary{
		Symbol:     e.cfg.Symbol,
		StartPrice: e.startPrice,
		StartLots:  e.acc.StartLots(),
		EndPrice:   e.price,
		EndLots:    e.acc.NetLots(),
		Operations: e.acc.Operations(),
		Profit:     e.acc.Profit(e.price),
		Errors:     e.acc.Errors(),
		Reliable:   e.priceSeen,
		ExitCode:   e.exitCode,
	}
}

func (e *Engine) record(ctx context.Context) {
	if e.opts.Recorder == nil {
		return
	}
	s := e.Summary()
	snap := Snapshot{
		Status:  e.state,
		Data:    s.String(),
		Total:   e.acc.RealizedSum() + float64(e.acc.NetLots())*e.price*e.acc.LotSize(),
		Profit:  s.Profit,
		EndLots: s.EndLots,
		Errors:  s.Errors,
		Time:    e.opts.Clock.Now(),
	}
	if err := e.opts.Recorder.Record(ctx, e.opts.RunID, snap); err != nil {
		e.log.WithError(err).Warn("failed to record run snapshot")
	}
}

// Run iterates until the engine finishes or ctx is cancelled. Cancellation
// stops the engine the way the session end would.
func (e *Engine) Run(ctx context.Context) Summary {
	for e.state != StateFinished {
		wait := e.Iterate(ctx)
		if e.state == StateFinished {
			break
		}
		e.opts.Clock.Sleep(ctx, wait)
		if ctx.Err() != nil {
			e.Stop(context.WithoutCancel(ctx), e.policy.ShouldLiquidateOnStop(), ExitCancelled)
		}
	}
	return e.Summary()
}

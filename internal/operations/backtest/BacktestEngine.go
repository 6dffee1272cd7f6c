package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/models"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/trading"
)

const dateLayout = "2006-01-02"

// Replayer runs historical trading days through the same engine production
// uses, with a Simulator in place of the exchange
type Replayer struct {
	source   CandleSource
	cache    *DayCache
	selector ConfigSelector
	opts     Options
	log      *logrus.Entry

	simulations atomic.Int64
}

func NewReplayer(source CandleSource, cache *DayCache, opts Options) *Replayer {
	opts.setDefaults()
	if cache == nil {
		cache = NewDayCache(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logger.Quiet())
	}
	return &Replayer{
		source: source,
		cache:  cache,
		opts:   opts,
		log:    log.WithField("component", "replayer"),
	}
}

// SetSelector enables per-day configuration selection for configurations
// with a pretest kind
func (r *Replayer) SetSelector(sel ConfigSelector) {
	r.selector = sel
}

// Simulations counts the days replayed minute by minute, cache misses only
func (r *Replayer) Simulations() int64 {
	return r.simulations.Load()
}

func (r *Replayer) Cache() *DayCache {
	return r.cache
}

// Run replays days in order, carrying the position from one day to the next.
// allowNested permits the selector to re-pick the configuration each day;
// nested replays started by the selector must pass false.
func (r *Replayer) Run(ctx context.Context, cfg grid.Config, startLots int, days []time.Time, allowNested bool) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	res := &Result{FinalConfig: cfg}
	current := cfg
	var prior *grid.Config
	netLots := startLots
	depo := 0.0

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if allowNested && r.selector != nil && cfg.PretestKind != grid.PretestNone {
			chosen, err := r.selector.Select(ctx, cfg, prior, day)
			if err != nil {
				r.log.WithError(err).WithField("day", day.Format(dateLayout)).Warn("configuration selection failed, keeping previous")
			} else {
				current = chosen
				prior = &chosen
			}
		}

		dr, err := r.runDay(ctx, current, netLots, day)
		if errors.Is(err, ErrNoCandles) {
			r.log.WithField("day", day.Format(dateLayout)).Debug("no candles, day skipped")
			continue
		}
		if err != nil {
			return nil, err
		}

		netLots = dr.EndLots
		res.Profit += dr.DaySum
		res.Operations += dr.Operations
		if dr.DaySum > 0 {
			res.SuccessDays++
		}
		res.Days = append(res.Days, dr)
		if depo == 0 {
			depo = current.Depo(dr.StartPrice, r.opts.Instrument.Lot())
		}
	}

	res.FinalConfig = current
	res.EndLots = netLots
	if depo > 0 {
		res.ProfitPercent = res.Profit / depo * 100
	}
	curve := equityCurve(depo, res.Days)
	res.MaxDrawdown = maxDrawdown(depo, curve)
	res.SharpeRatio = sharpeRatio(curve)
	return res, nil
}

// window returns the session bounds of day and whether they were cut short by now
func (r *Replayer) window(day time.Time) (start, end time.Time, partial bool) {
	d := day.In(r.opts.Location)
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.opts.Location)
	sessionEnd := r.opts.SessionEnd
	if sessionEnd <= 0 {
		sessionEnd = 24 * time.Hour
	}
	start, end = midnight.Add(r.opts.SessionStart), midnight.Add(sessionEnd)

	if now := r.opts.Now(); end.After(now) {
		end = now.Truncate(time.Minute)
		partial = true
	}
	return start, end, partial
}

func (r *Replayer) runDay(ctx context.Context, cfg grid.Config, lots int, day time.Time) (models.DayResult, error) {
	start, end, partial := r.window(day)
	if !end.After(start) {
		return models.DayResult{}, ErrNoCandles
	}

	key := DayKey{Date: start.Format(dateLayout), Fingerprint: cfg.Fingerprint(), StartingLots: lots}
	if !partial {
		if dr, ok := r.cache.Get(key); ok {
			return dr, nil
		}
	}

	candles, err := r.source.Candles(ctx, cfg.Symbol, start, end)
	if err != nil {
		return models.DayResult{}, fmt.Errorf("failed to load candles for %s: %w", key.Date, err)
	}
	if len(candles) == 0 {
		return models.DayResult{}, ErrNoCandles
	}

	if gaps := missingMinutes(candles); gaps > 0 {
		r.log.WithFields(logrus.Fields{
			"day":    key.Date,
			"symbol": cfg.Symbol,
			"gaps":   gaps,
		}).Debug("minute candles missing, replaying through the gaps")
	}

	dr, err := r.simulate(ctx, cfg, lots, start, end, candles)
	if err != nil {
		return models.DayResult{}, err
	}
	dr.Date, dr.Fingerprint, dr.StartingLots = key.Date, key.Fingerprint, key.StartingLots
	if !partial {
		r.cache.Put(key, dr)
	}
	return dr, nil
}

type simClock struct {
	now time.Time
}

func (c *simClock) Now() time.Time { return c.now }

// Sleep is a no-op: replay time only moves with the candles
func (c *simClock) Sleep(context.Context, time.Duration) {}

func (r *Replayer) simulate(ctx context.Context, cfg grid.Config, lots int, start, end time.Time, candles []models.Candle) (models.DayResult, error) {
	r.simulations.Add(1)

	sim := NewSimulator(r.opts.Instrument, r.opts.Commission, lots)
	clock := &simClock{now: start}
	eng, err := trading.NewEngine(cfg, sim, lots, trading.Options{
		SessionStart: r.opts.SessionStart,
		SessionEnd:   r.opts.SessionEnd,
		Location:     r.opts.Location,
		SleepTrading: r.opts.SleepTrading,
		LotSize:      r.opts.Instrument.Lot(),
		Clock:        clock,
		Logger:       r.log.WithField("day", start.Format(dateLayout)),
	})
	if err != nil {
		return models.DayResult{}, err
	}

	idx := 0
	wake := start
	for t := start; t.Before(end); t = t.Add(time.Minute) {
		for idx < len(candles) && candles[idx].OpenTime.Before(t) {
			idx++
		}
		if idx < len(candles) && candles[idx].OpenTime.Equal(t) {
			sim.Feed(candles[idx])
			idx++
		}
		// the bar is known once it closes
		clock.now = t.Add(time.Minute)

		if t.Before(wake) {
			continue
		}
		eng.Iterate(ctx)
		if eng.State() == trading.StateFinished {
			break
		}
		wake = t.Add(r.opts.SleepTrading)
	}
	eng.EndSession(ctx)

	s := eng.Summary()
	if !s.Reliable {
		r.log.WithField("day", start.Format(dateLayout)).Warn("no price during the day, result unreliable")
	}
	return models.DayResult{
		StartPrice: s.StartPrice,
		StartLots:  s.StartLots,
		EndPrice:   s.EndPrice,
		EndLots:    s.EndLots,
		Operations: s.Operations,
		DaySum:     s.Profit,
	}, nil
}

// missingMinutes counts the minutes without a candle between the first and
// last candle of a sorted slice
func missingMinutes(candles []models.Candle) int {
	if len(candles) < 2 {
		return 0
	}
	span := int(candles[len(candles)-1].OpenTime.Sub(candles[0].OpenTime) / time.Minute)
	if gaps := span + 1 - len(candles); gaps > 0 {
		return gaps
	}
	return 0
}

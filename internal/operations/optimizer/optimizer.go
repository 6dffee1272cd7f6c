package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/operations/backtest"
	"GridTradeBot/internal/services/analysis"
	"GridTradeBot/internal/services/grid"
)

const maxWorkers = 4

var ErrNoVariants = errors.New("no configuration variant could be scored")

// Runner replays a configuration over days
type Runner interface {
	Run(ctx context.Context, cfg grid.Config, startLots int, days []time.Time, allowNested bool) (*backtest.Result, error)
}

// RangeSource measures the lookback window the variants are derived from
type RangeSource interface {
	DailyRanges(ctx context.Context, symbol string, days []time.Time) (*analysis.RangeStats, error)
}

type Options struct {
	Instrument grid.Instrument
	Workers    int // zero means min(NumCPU, 4)
	Logger     *logrus.Entry
}

// Scored is one variant and its replay over the lookback window
type Scored struct {
	Config grid.Config
	Result *backtest.Result
}

// Optimizer searches the neighbourhood of a configuration for the variant
// that did best over the preceding days. The search is local and greedy.
type Optimizer struct {
	runner  Runner
	ranges  RangeSource
	inst    grid.Instrument
	workers int
	log     *logrus.Entry
}

func New(runner Runner, ranges RangeSource, opts Options) *Optimizer {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > maxWorkers {
			workers = maxWorkers
		}
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithField("component", "optimizer")
	}
	return &Optimizer{
		runner:  runner,
		ranges:  ranges,
		inst:    opts.Instrument,
		workers: workers,
		log:     log,
	}
}

// LookbackDays returns the n calendar days before day, oldest first
func LookbackDays(day time.Time, n int) []time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	days := make([]time.Time, 0, n)
	for i := n; i >= 1; i-- {
		days = append(days, midnight.AddDate(0, 0, -i))
	}
	return days
}

// Select picks the configuration to trade on day. It satisfies
// backtest.ConfigSelector and never asks the runner for nested selection.
func (o *Optimizer) Select(ctx context.Context, base grid.Config, prior *grid.Config, day time.Time) (grid.Config, error) {
	if base.PretestKind == grid.PretestNone || base.PretestPeriod <= 0 {
		return base, nil
	}

	days := LookbackDays(day, base.PretestPeriod)
	stats, err := o.ranges.DailyRanges(ctx, base.Symbol, days)
	if err != nil {
		return base, fmt.Errorf("failed to analyze lookback window: %w", err)
	}

	variants := Variants(base, prior, stats.LastClose, stats.MaxRange, o.inst)
	best, _, err := o.Best(ctx, variants, days)
	if err != nil {
		return base, err
	}

	o.log.WithFields(logrus.Fields{
		"day":      day.Format("2006-01-02"),
		"variants": len(variants),
		"range":    stats.MaxRange,
		"trend":    stats.Trend,
		"config":   best.String(),
	}).Info("configuration selected")
	return best, nil
}

// Best replays every variant in parallel and returns the ending configuration
// of the one with the highest profit percent. Ties keep variant order.
func (o *Optimizer) Best(ctx context.Context, variants []grid.Config, days []time.Time) (grid.Config, []Scored, error) {
	scored, err := o.Score(ctx, variants, days)
	if err != nil {
		return grid.Config{}, nil, err
	}
	if len(scored) == 0 {
		return grid.Config{}, nil, ErrNoVariants
	}
	return scored[0].Result.FinalConfig, scored, nil
}

// Score replays variants on a bounded worker pool and ranks them by profit
// percent, best first. Variants whose replay fails are left out.
func (o *Optimizer) Score(ctx context.Context, variants []grid.Config, days []time.Time) ([]Scored, error) {
	results := make([]*backtest.Result, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			res, err := o.runner.Run(gctx, v, 0, days, false)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				o.log.WithError(err).WithField("config", v.String()).Warn("variant replay failed")
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(variants))
	for i, res := range results {
		if res != nil {
			scored = append(scored, Scored{Config: variants[i], Result: res})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.ProfitPercent > scored[j].Result.ProfitPercent
	})
	return scored, nil
}

package backtest

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/models"
	"GridTradeBot/internal/services/grid"
)

var ErrNoCandles = errors.New("no candles for trading day")

// CandleSource supplies minute candles with open time in [start, end)
type CandleSource interface {
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
}

// DayStore persists replayed days behind the in-memory cache
type DayStore interface {
	FindByKey(date, fingerprint string, startingLots int) (*models.DayResult, error)
	Save(day *models.DayResult) error
}

// ConfigSelector picks the configuration to trade on a day. Implementations
// must replay with allowNested=false.
type ConfigSelector interface {
	Select(ctx context.Context, base grid.Config, prior *grid.Config, day time.Time) (grid.Config, error)
}

type Options struct {
	Instrument grid.Instrument
	Commission float64 // fraction of notional per execution

	SessionStart time.Duration
	SessionEnd   time.Duration
	Location     *time.Location
	SleepTrading time.Duration

	// Now clamps replays of the current day
	Now    func() time.Time
	Logger *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.SleepTrading <= 0 {
		o.SleepTrading = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result sums a multi-day replay
type Result struct {
	Profit        float64
	ProfitPercent float64 // of the first day's depo
	Operations    int
	SuccessDays   int
	EndLots       int
	Days          []models.DayResult
	FinalConfig   grid.Config

	MaxDrawdown float64
	SharpeRatio float64
}

// EquityPoint is the depo plus accumulated profit after a day
type EquityPoint struct {
	Date    string
	Balance float64
}

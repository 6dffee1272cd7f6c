package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"GridTradeBot/internal/models"
	"GridTradeBot/internal/services/indicators"
)

const (
	bandPeriod     = 20
	bandDeviations = 2
	trendPeriod    = 3
)

var ErrNoData = errors.New("no candles in lookback window")

// CandleSource supplies minute candles with open time in [start, end)
type CandleSource interface {
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
}

// DayRange is the trading range of one calendar day
type DayRange struct {
	Date  string
	High  float64
	Low   float64
	Close float64
	// mean Bollinger width of minute closes, zero for thin days
	BandWidth float64
}

func (d DayRange) Range() float64 {
	return d.High - d.Low
}

type RangeStats struct {
	Days       []DayRange
	MaxRange   float64
	AvgRange   float64
	LastClose  float64
	Volatility float64 // sample deviation of close-to-close returns
	Trend      float64 // EMA slope of daily closes
}

// RangeAnalyzer measures how far an instrument moves within a day. The
// optimizer sizes fan ladders and price steps from it.
type RangeAnalyzer struct {
	source CandleSource
	loc    *time.Location
	ema    *indicators.EMAService
	bands  *indicators.BBandsService
}

func NewRangeAnalyzer(source CandleSource, loc *time.Location) *RangeAnalyzer {
	if loc == nil {
		loc = time.UTC
	}
	return &RangeAnalyzer{
		source: source,
		loc:    loc,
		ema:    indicators.NewEMAService(),
		bands:  indicators.NewBBandsService(),
	}
}

// DailyRanges analyzes the given days; days without candles are left out
func (a *RangeAnalyzer) DailyRanges(ctx context.Context, symbol string, days []time.Time) (*RangeStats, error) {
	stats := &RangeStats{}
	for _, day := range days {
		d := day.In(a.loc)
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, a.loc)
		candles, err := a.source.Candles(ctx, symbol, start, start.AddDate(0, 0, 1))
		if err != nil {
			return nil, fmt.Errorf("failed to load candles for %s: %w", start.Format("2006-01-02"), err)
		}
		if len(candles) == 0 {
			continue
		}
		r := summarize(start, candles)
		r.BandWidth = a.bands.AverageWidth(closes(candles), bandPeriod, bandDeviations)
		stats.Days = append(stats.Days, r)
	}
	if len(stats.Days) == 0 {
		return nil, ErrNoData
	}

	total := 0.0
	for _, d := range stats.Days {
		total += d.Range()
		stats.MaxRange = math.Max(stats.MaxRange, d.Range())
	}
	stats.AvgRange = total / float64(len(stats.Days))
	stats.LastClose = stats.Days[len(stats.Days)-1].Close
	stats.Volatility = volatility(stats.Days)

	daily := make([]float64, len(stats.Days))
	for i, d := range stats.Days {
		daily[i] = d.Close
	}
	stats.Trend = a.ema.Slope(a.ema.Calculate(daily, trendPeriod))
	return stats, nil
}

func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func summarize(day time.Time, candles []models.Candle) DayRange {
	r := DayRange{
		Date:  day.Format("2006-01-02"),
		High:  candles[0].High,
		Low:   candles[0].Low,
		Close: candles[len(candles)-1].Close,
	}
	for _, c := range candles[1:] {
		r.High = math.Max(r.High, c.High)
		r.Low = math.Min(r.Low, c.Low)
	}
	return r
}

func volatility(days []DayRange) float64 {
	if len(days) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		if days[i-1].Close == 0 {
			continue
		}
		returns = append(returns, (days[i].Close-days[i-1].Close)/days[i-1].Close)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-mean, 2)
	}
	return math.Sqrt(variance / float64(len(returns)-1))
}

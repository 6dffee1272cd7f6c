package price

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/repositories"
)

// Recorder keeps the candle table of a set of symbols up to date
type Recorder struct {
	repo    *repositories.CandleRepository
	remote  KlineSource
	symbols []string
	now     func() time.Time
	log     *logrus.Entry
}

func NewRecorder(repo *repositories.CandleRepository, remote KlineSource, symbols []string) *Recorder {
	return &Recorder{
		repo:    repo,
		remote:  remote,
		symbols: symbols,
		now:     time.Now,
		log:     logger.WithField("component", "recorder"),
	}
}

// Backfill downloads every complete day of the last days days that is not
// fully stored yet, plus today's closed minutes
func (r *Recorder) Backfill(ctx context.Context, days int) error {
	now := r.now().UTC().Truncate(time.Minute)
	today := now.Truncate(24 * time.Hour)

	for _, symbol := range r.symbols {
		for d := days; d >= 0; d-- {
			start := today.AddDate(0, 0, -d)
			end := start.Add(24 * time.Hour)
			if end.After(now) {
				end = now
			}
			if !start.Before(end) {
				continue
			}
			if err := r.syncWindow(ctx, symbol, start, end); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start appends newly closed minutes every interval until ctx is done
func (r *Recorder) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Infof("recording candles every %s", interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopping candle recording")
			return
		case <-ticker.C:
			r.recordLatest(ctx)
		}
	}
}

func (r *Recorder) recordLatest(ctx context.Context) {
	now := r.now().UTC().Truncate(time.Minute)
	for _, symbol := range r.symbols {
		start := now.Add(-time.Hour)
		latest, err := r.repo.GetLatest(symbol)
		if err != nil {
			r.log.WithError(err).WithField("symbol", symbol).Warn("failed to read latest candle")
			continue
		}
		if latest != nil && latest.OpenTime.After(start) {
			start = latest.OpenTime.Add(time.Minute)
		}
		if err := r.syncWindow(ctx, symbol, start, now); err != nil {
			r.log.WithError(err).WithField("symbol", symbol).Warn("failed to record candles")
		}
	}
}

func (r *Recorder) syncWindow(ctx context.Context, symbol string, start, end time.Time) error {
	if !start.Before(end) {
		return nil
	}
	expected := int64(end.Sub(start) / time.Minute)
	stored, err := r.repo.CountRange(symbol, start, end)
	if err != nil {
		return err
	}
	if stored >= expected {
		return nil
	}

	candles, err := r.remote.MinuteCandles(ctx, symbol, start, end)
	if err != nil {
		return err
	}
	if err := r.repo.SaveBatch(candles); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"symbol": symbol,
		"from":   start.Format("2006-01-02 15:04"),
		"count":  len(candles),
	}).Debug("recorded candles")
	return nil
}

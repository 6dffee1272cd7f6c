package price

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/models"
	"GridTradeBot/internal/repositories"
)

// KlineSource downloads minute candles with open time in [start, end)
type KlineSource interface {
	MinuteCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
}

type cacheKey struct {
	symbol     string
	start, end int64
}

// Fetcher serves minute candles from the repository, downloading what is
// missing. Windows that lie fully in the past are kept in memory.
type Fetcher struct {
	repo   *repositories.CandleRepository
	remote KlineSource
	now    func() time.Time
	log    *logrus.Entry

	mu    sync.RWMutex
	cache map[cacheKey][]models.Candle
}

// NewFetcher builds a candle source. A nil remote serves stored candles only.
func NewFetcher(repo *repositories.CandleRepository, remote KlineSource) *Fetcher {
	return &Fetcher{
		repo:   repo,
		remote: remote,
		now:    time.Now,
		log:    logger.WithField("component", "candles"),
		cache:  make(map[cacheKey][]models.Candle),
	}
}

func (f *Fetcher) Candles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	key := cacheKey{symbol: symbol, start: start.UnixNano(), end: end.UnixNano()}
	f.mu.RLock()
	cached, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	now := f.now().Truncate(time.Minute)
	upTo := end
	if upTo.After(now) {
		upTo = now
	}
	if !start.Before(upTo) {
		return nil, nil
	}

	stored, err := f.repo.FindRange(symbol, start, upTo)
	if err != nil {
		return nil, fmt.Errorf("failed to read candles: %w", err)
	}

	expected := int(upTo.Sub(start) / time.Minute)
	if len(stored) < expected && f.remote != nil {
		fetched, err := f.download(ctx, symbol, start, upTo)
		switch {
		case err != nil && len(stored) == 0:
			return nil, err
		case err != nil:
			f.log.WithError(err).WithField("symbol", symbol).Warn("download failed, using stored candles")
		case len(fetched) > len(stored):
			stored = fetched
		}
	}

	if !end.After(now) && len(stored) > 0 {
		f.mu.Lock()
		f.cache[key] = stored
		f.mu.Unlock()
	}
	return stored, nil
}

// download fetches a window and persists it, returning it in time order
func (f *Fetcher) download(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	candles, err := f.remote.MinuteCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to download candles: %w", err)
	}
	if err := f.repo.SaveBatch(candles); err != nil {
		f.log.WithError(err).WithField("symbol", symbol).Warn("failed to store candles")
		return candles, nil
	}

	f.log.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(candles),
		"from":   start.Format("2006-01-02 15:04"),
	}).Info("downloaded candles")
	return f.repo.FindRange(symbol, start, end)
}

package handlers

import (
	"context"
	"time"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/operations/price"
)

const recordInterval = time.Minute

// CandleHandler fills the candle table for backtests and keeps it current
type CandleHandler struct {
	recorder *price.Recorder
	days     int
}

func NewCandleHandler(recorder *price.Recorder, days int) *CandleHandler {
	return &CandleHandler{recorder: recorder, days: days}
}

// Download backfills the lookback window once
func (h *CandleHandler) Download(ctx context.Context) error {
	logger.Infof("Fetching minute candles for the last %d days", h.days)
	return h.recorder.Backfill(ctx, h.days)
}

// Start backfills, then records new minutes in the background until ctx is done
func (h *CandleHandler) Start(ctx context.Context) error {
	if err := h.Download(ctx); err != nil {
		return err
	}
	go h.recorder.Start(ctx, recordInterval)
	return nil
}

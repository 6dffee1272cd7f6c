package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/operations/backtest"
	"GridTradeBot/internal/operations/run"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/trading"
)

// RunHandler drives live engines, one per configuration
type RunHandler struct {
	recorder *run.Recorder
	commands *CommandHandler
	selector backtest.ConfigSelector // optional pre-trade selection
	opts     trading.Options

	mu      sync.RWMutex
	engines map[uint]*trading.Engine
	wg      sync.WaitGroup
}

// NewRunHandler takes the engine options shared by every run. Commands,
// Recorder, RunID and DealSink are filled per run.
func NewRunHandler(recorder *run.Recorder, commands *CommandHandler, selector backtest.ConfigSelector, opts trading.Options) *RunHandler {
	return &RunHandler{
		recorder: recorder,
		commands: commands,
		selector: selector,
		opts:     opts,
		engines:  make(map[uint]*trading.Engine),
	}
}

// Trade runs one engine for cfg on client until it finishes or ctx is done
func (h *RunHandler) Trade(ctx context.Context, cfg grid.Config, client exchange.Client) (trading.Summary, error) {
	cfg = h.selectConfig(ctx, cfg)

	r, err := h.recorder.Begin(cfg)
	if err != nil {
		return trading.Summary{}, err
	}
	log := logger.WithFields(logrus.Fields{"symbol": cfg.Symbol, "run": r.ID})

	startLots, err := client.InstrumentCount(ctx)
	if err != nil {
		h.fail(r.ID, err)
		return trading.Summary{}, fmt.Errorf("failed to read position: %w", err)
	}

	opts := h.opts
	if h.commands != nil {
		opts.Commands = h.commands
	}
	opts.Recorder = h.recorder
	opts.RunID = r.ID
	opts.DealSink = h.recorder.Deals(r.ID)
	opts.Logger = log

	engine, err := trading.NewEngine(cfg, client, startLots, opts)
	if err != nil {
		h.fail(r.ID, err)
		return trading.Summary{}, err
	}

	h.mu.Lock()
	h.engines[r.ID] = engine
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.engines, r.ID)
		h.mu.Unlock()
	}()

	log.Infof("Run started with %s", cfg.String())
	summary := engine.Run(ctx)
	return summary, nil
}

// Start launches one engine per configuration in the background
func (h *RunHandler) Start(ctx context.Context, configs []grid.Config, clients map[string]exchange.Client) error {
	for _, cfg := range configs {
		client, ok := clients[cfg.Symbol]
		if !ok {
			return fmt.Errorf("no exchange client for %s", cfg.Symbol)
		}
		h.wg.Add(1)
		go func(cfg grid.Config, client exchange.Client) {
			defer h.wg.Done()
			summary, err := h.Trade(ctx, cfg, client)
			if err != nil {
				logger.WithField("symbol", cfg.Symbol).WithError(err).Error("run failed")
				return
			}
			logger.WithField("symbol", cfg.Symbol).Info(summary.String())
		}(cfg, client)
	}
	return nil
}

// Wait blocks until every started run has finished
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

// Active lists the ids of the runs being driven
func (h *RunHandler) Active() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint, 0, len(h.engines))
	for id := range h.engines {
		ids = append(ids, id)
	}
	return ids
}

func (h *RunHandler) selectConfig(ctx context.Context, cfg grid.Config) grid.Config {
	if h.selector == nil || cfg.PretestKind == grid.PretestNone {
		return cfg
	}
	now := time.Now()
	if h.opts.Clock != nil {
		now = h.opts.Clock.Now()
	}
	chosen, err := h.selector.Select(ctx, cfg, nil, now)
	if err != nil {
		logger.WithField("symbol", cfg.Symbol).WithError(err).Warn("pre-trade selection failed, trading base configuration")
		return cfg
	}
	return chosen
}

func (h *RunHandler) fail(runID uint, cause error) {
	if err := h.recorder.Fail(runID, cause); err != nil {
		logger.Log.WithError(err).Warn("failed to mark run failed")
	}
}

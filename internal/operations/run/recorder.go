package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GridTradeBot/internal/models"
	"GridTradeBot/internal/repositories"
	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/trading"
)

var ErrRunNotFound = errors.New("run not found")

// Recorder mirrors engine snapshots and deals into the run tables
type Recorder struct {
	runs  *repositories.RunRepository
	deals *repositories.DealRepository
	now   func() time.Time
}

func NewRecorder(runs *repositories.RunRepository, deals *repositories.DealRepository) *Recorder {
	return &Recorder{runs: runs, deals: deals, now: time.Now}
}

// Begin registers a new run of cfg
func (r *Recorder) Begin(cfg grid.Config) (*models.Run, error) {
	run := &models.Run{
		Symbol:    cfg.Symbol,
		Config:    grid.Encode(cfg),
		Status:    models.RunStatusNew,
		StartedAt: r.now(),
	}
	if err := r.runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (r *Recorder) Record(ctx context.Context, runID uint, s trading.Snapshot) error {
	run, err := r.find(runID)
	if err != nil {
		return err
	}

	run.Status = string(s.Status)
	run.Data = s.Data
	run.Total = s.Total
	run.Profit = s.Profit
	run.EndLots = s.EndLots
	run.ErrorCount = s.Errors
	if s.Status == trading.StateFinished && run.FinishedAt == nil {
		at := s.Time
		if at.IsZero() {
			at = r.now()
		}
		run.FinishedAt = &at
	}
	return r.runs.Update(run)
}

// Fail marks a run that could not be driven to completion
func (r *Recorder) Fail(runID uint, cause error) error {
	run, err := r.find(runID)
	if err != nil {
		return err
	}
	at := r.now()
	run.Status = models.RunStatusFailed
	run.Data = cause.Error()
	run.FinishedAt = &at
	return r.runs.Update(run)
}

func (r *Recorder) find(runID uint) (*models.Run, error) {
	run, err := r.runs.FindByID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return run, nil
}

// Deals returns a sink storing the deals of runID
func (r *Recorder) Deals(runID uint) accounting.DealSink {
	return &dealSink{repo: r.deals, runID: runID}
}

type dealSink struct {
	repo  *repositories.DealRepository
	runID uint
}

func (s *dealSink) SaveDeal(ctx context.Context, d accounting.Deal) error {
	return s.repo.Create(&models.Deal{
		RunID:      s.runID,
		OrderID:    d.OrderID,
		Side:       string(d.Side),
		Kind:       string(d.Kind),
		Lots:       d.Lots,
		Price:      d.Price,
		Commission: d.Commission,
		Partial:    d.Partial,
		Failed:     d.Failed,
		Time:       d.Time,
	})
}

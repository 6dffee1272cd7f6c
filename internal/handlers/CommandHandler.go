package handlers

import (
	"context"
	"fmt"
	"sync"

	"GridTradeBot/internal/models"
	"GridTradeBot/internal/repositories"
	"GridTradeBot/internal/services/trading"
)

// CommandHandler queues operator commands and hands them to engines
type CommandHandler struct {
	commandRepo *repositories.CommandRepository

	// one consumer per run at a time
	consuming sync.Map
}

func NewCommandHandler(commandRepo *repositories.CommandRepository) *CommandHandler {
	return &CommandHandler{commandRepo: commandRepo}
}

// Submit queues a command for runID
func (h *CommandHandler) Submit(runID uint, kind trading.CommandKind) (*models.Command, error) {
	switch kind {
	case trading.CommandStop, trading.CommandStopLiquidate:
	default:
		return nil, fmt.Errorf("unknown command %q", kind)
	}
	cmd := &models.Command{RunID: runID, Kind: string(kind)}
	if err := h.commandRepo.Create(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (h *CommandHandler) Pending(ctx context.Context, runID uint) ([]trading.Command, error) {
	key := fmt.Sprintf("run_%d", runID)
	if _, loaded := h.consuming.LoadOrStore(key, true); loaded {
		return nil, fmt.Errorf("commands of run %d are being consumed", runID)
	}
	defer h.consuming.Delete(key)

	stored, err := h.commandRepo.FindPending(runID)
	if err != nil {
		return nil, err
	}
	cmds := make([]trading.Command, 0, len(stored))
	for _, c := range stored {
		cmds = append(cmds, trading.Command{ID: c.ID, Kind: trading.CommandKind(c.Kind)})
	}
	return cmds, nil
}

func (h *CommandHandler) Complete(ctx context.Context, cmd trading.Command, err error) error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return h.commandRepo.Finish(cmd.ID, reason)
}

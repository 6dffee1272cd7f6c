package repositories

import (
	"errors"

	"gorm.io/gorm"

	"GridTradeBot/internal/models"
)

type CommandRepository struct {
	db *gorm.DB
}

// NewCommandRepository creates a new instance of CommandRepository
func NewCommandRepository(db *gorm.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// Create queues a command
func (r *CommandRepository) Create(cmd *models.Command) error {
	if cmd == nil {
		return errors.New("command cannot be nil")
	}
	if cmd.Status == "" {
		cmd.Status = models.CommandStatusPending
	}
	return r.db.Create(cmd).Error
}

// FindPending retrieves the queued commands of a run, oldest first
func (r *CommandRepository) FindPending(runID uint) ([]models.Command, error) {
	var cmds []models.Command
	err := r.db.Where("run_id = ? AND status = ?", runID, models.CommandStatusPending).
		Order("id ASC").
		Find(&cmds).Error
	return cmds, err
}

// Finish marks a command finished, or failed with reason when reason is set
func (r *CommandRepository) Finish(id uint, reason string) error {
	if id == 0 {
		return errors.New("invalid id")
	}
	status := models.CommandStatusFinished
	if reason != "" {
		status = models.CommandStatusFailed
	}
	return r.db.Model(&models.Command{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error": reason}).Error
}

// FindByID retrieves a Command record by its ID
func (r *CommandRepository) FindByID(id uint) (*models.Command, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var cmd models.Command
	err := r.db.First(&cmd, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &cmd, err
}

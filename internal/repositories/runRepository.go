package repositories

import (
	"errors"

	"gorm.io/gorm"

	"GridTradeBot/internal/models"
)

type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new instance of RunRepository
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create adds a new Run record to the database
func (r *RunRepository) Create(run *models.Run) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	return r.db.Create(run).Error
}

// FindByID retrieves a Run record by its ID
func (r *RunRepository) FindByID(id uint) (*models.Run, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var run models.Run
	err := r.db.First(&run, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &run, err
}

// Update modifies an existing Run record
func (r *RunRepository) Update(run *models.Run) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	return r.db.Save(run).Error
}

// FindActive retrieves the runs that have not finished yet
func (r *RunRepository) FindActive() ([]models.Run, error) {
	var runs []models.Run
	err := r.db.Where("status IN ?", []string{models.RunStatusNew, models.RunStatusWorking}).
		Order("id ASC").
		Find(&runs).Error
	return runs, err
}

package repositories

import (
	"errors"

	"gorm.io/gorm"

	"GridTradeBot/internal/models"
)

type DealRepository struct {
	db *gorm.DB
}

// NewDealRepository creates a new instance of DealRepository
func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create adds a new Deal record to the database
func (r *DealRepository) Create(deal *models.Deal) error {
	if deal == nil {
		return errors.New("deal cannot be nil")
	}
	return r.db.Create(deal).Error
}

// FindByRun retrieves the deals of a run in booking order
func (r *DealRepository) FindByRun(runID uint) ([]models.Deal, error) {
	if runID == 0 {
		return nil, errors.New("invalid run id")
	}
	var deals []models.Deal
	err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&deals).Error
	return deals, err
}

// SumCommission adds up the commission paid by a run
func (r *DealRepository) SumCommission(runID uint) (float64, error) {
	var total float64
	err := r.db.Model(&models.Deal{}).
		Where("run_id = ? AND failed = ?", runID, false).
		Select("COALESCE(SUM(commission), 0)").
		Scan(&total).Error
	return total, err
}

package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"GridTradeBot/internal/models"
)

type DayResultRepository struct {
	db *gorm.DB
}

// NewDayResultRepository creates a new instance of DayResultRepository
func NewDayResultRepository(db *gorm.DB) *DayResultRepository {
	return &DayResultRepository{db: db}
}

// FindByKey returns the cached day, or nil when it was never replayed
func (r *DayResultRepository) FindByKey(date, fingerprint string, startingLots int) (*models.DayResult, error) {
	if date == "" || fingerprint == "" {
		return nil, errors.New("invalid day key")
	}
	var day models.DayResult
	err := r.db.Where("date = ? AND fingerprint = ? AND starting_lots = ?", date, fingerprint, startingLots).
		First(&day).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &day, err
}

// Save stores a day once. Concurrent writers of the same key keep the first row.
func (r *DayResultRepository) Save(day *models.DayResult) error {
	if day == nil {
		return errors.New("day result cannot be nil")
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(day).Error
}

// CountByFingerprint counts the days replayed for one configuration
func (r *DayResultRepository) CountByFingerprint(fingerprint string) (int64, error) {
	var count int64
	err := r.db.Model(&models.DayResult{}).Where("fingerprint = ?", fingerprint).Count(&count).Error
	return count, err
}

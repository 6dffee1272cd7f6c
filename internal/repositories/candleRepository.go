package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"GridTradeBot/internal/models"
)

type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a new instance of CandleRepository
func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Create adds a new Candle record to the database
func (r *CandleRepository) Create(candle *models.Candle) error {
	if candle == nil {
		return errors.New("candle cannot be nil")
	}
	return r.db.Create(candle).Error
}

// SaveBatch stores candles, skipping minutes that are already stored
func (r *CandleRepository) SaveBatch(candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(candles, 500).Error
}

// FindRange returns the candles of symbol with open time in [start, end)
func (r *CandleRepository) FindRange(symbol string, start, end time.Time) ([]models.Candle, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var candles []models.Candle
	err := r.db.Where("symbol = ? AND open_time >= ? AND open_time < ?", symbol, start, end).
		Order("open_time ASC").
		Find(&candles).Error
	return candles, err
}

// CountRange counts stored candles of symbol with open time in [start, end)
func (r *CandleRepository) CountRange(symbol string, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Candle{}).
		Where("symbol = ? AND open_time >= ? AND open_time < ?", symbol, start, end).
		Count(&count).Error
	return count, err
}

// GetLatest gets the most recent candle for a symbol
func (r *CandleRepository) GetLatest(symbol string) (*models.Candle, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var candle models.Candle
	err := r.db.Where("symbol = ?", symbol).
		Order("open_time DESC").
		First(&candle).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &candle, err
}

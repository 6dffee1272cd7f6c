package models

import (
	"time"
)

// Candle is one minute bar of an instrument
type Candle struct {
	ID         uint      `gorm:"primaryKey"`
	Symbol     string    `gorm:"uniqueIndex:idx_candle_minute;not null"`
	OpenTime   time.Time `gorm:"uniqueIndex:idx_candle_minute;not null"`
	CloseTime  time.Time `gorm:"index"`
	Open       float64   `gorm:"type:decimal(20,8)"`
	High       float64   `gorm:"type:decimal(20,8)"`
	Low        float64   `gorm:"type:decimal(20,8)"`
	Close      float64   `gorm:"type:decimal(20,8)"`
	Volume     float64   `gorm:"type:decimal(20,8)"`
	IsComplete bool      `gorm:"not null;default:true"`
}

// TableName sets the table name for Candle model
func (Candle) TableName() string {
	return "candles"
}

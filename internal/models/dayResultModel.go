package models

import (
	"time"
)

// DayResult caches one replayed trading day. A row is written once per
// (date, fingerprint, starting lots) and never updated.
type DayResult struct {
	ID           uint   `gorm:"primaryKey"`
	Date         string `gorm:"uniqueIndex:idx_day_key;size:10;not null"`
	Fingerprint  string `gorm:"uniqueIndex:idx_day_key;not null"`
	StartingLots int    `gorm:"uniqueIndex:idx_day_key;not null"`

	StartPrice float64 `gorm:"type:decimal(20,8)"`
	StartLots  int
	EndPrice   float64 `gorm:"type:decimal(20,8)"`
	EndLots    int
	Operations int
	DaySum     float64 `gorm:"type:decimal(20,8)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName sets the table name for DayResult model
func (DayResult) TableName() string {
	return "day_results"
}

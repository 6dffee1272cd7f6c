package models

import "time"

// Run is one engine session as seen by operators
type Run struct {
	ID     uint   `gorm:"primaryKey"`
	Symbol string `gorm:"index;not null"`
	Config string `gorm:"not null"`
	Status string `gorm:"index;not null"`
	Data   string

	Total      float64 `gorm:"type:decimal(20,8)"`
	Profit     float64 `gorm:"type:decimal(20,8)"`
	EndLots    int
	ErrorCount int

	StartedAt  time.Time `gorm:"index;not null"`
	FinishedAt *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	RunStatusNew      = "new"
	RunStatusWorking  = "working"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

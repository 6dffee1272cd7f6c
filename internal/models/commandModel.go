package models

import "time"

// Command is an operator request addressed to a running engine
type Command struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  uint   `gorm:"index;not null"`
	Kind   string `gorm:"not null"`
	Status string `gorm:"index;not null"`
	Error  string

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	CommandStatusPending  = "pending"
	CommandStatusFinished = "finished"
	CommandStatusFailed   = "failed"

	CommandKindStop          = "stop"
	CommandKindStopLiquidate = "stop_liquidate"
)

// All lists every model for migrations
func All() []interface{} {
	return []interface{}{&Candle{}, &Run{}, &DayResult{}, &Deal{}, &Command{}}
}

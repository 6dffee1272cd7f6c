package models

import (
	"time"
)

type Deal struct {
	ID         uint    `gorm:"primaryKey"`
	RunID      uint    `gorm:"index;not null"`
	OrderID    string  `gorm:"index"`
	Side       string  `gorm:"not null"`
	Kind       string
	Lots       int     `gorm:"not null"`
	Price      float64 `gorm:"type:decimal(20,8);not null"`
	Commission float64 `gorm:"type:decimal(20,8)"`
	Partial    bool
	Failed     bool

	Time      time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// MockTest is a scheduled full-length practice exam
type MockTest struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title        string    `gorm:"type:varchar(255)" json:"title"`
	Slug         string    `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Price        float64   `gorm:"type:decimal(15,2)" json:"price"`
	DurationDays int       `gorm:"default:30" json:"duration_days"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
}

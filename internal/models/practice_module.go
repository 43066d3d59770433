package models

import (
	"time"

	"gorm.io/gorm"
)

// ModuleCategory groups practice modules by exam section
type ModuleCategory string

const (
	ModuleCategoryListening ModuleCategory = "listening"
	ModuleCategoryReading   ModuleCategory = "reading"
	ModuleCategoryWriting   ModuleCategory = "writing"
	ModuleCategorySpeaking  ModuleCategory = "speaking"
)

// PracticeModule is a purchasable set of practice exercises for one exam
// section
type PracticeModule struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title        string         `gorm:"type:varchar(255)" json:"title"`
	Slug         string         `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Category     ModuleCategory `gorm:"type:varchar(20)" json:"category"`
	Price        float64        `gorm:"type:decimal(15,2)" json:"price"`
	DurationDays int            `gorm:"default:30" json:"duration_days"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
}

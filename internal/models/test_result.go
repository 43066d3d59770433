package models

import (
	"time"

	"gorm.io/gorm"
)

// TestResult is a user's band score for one mock test. Only published rows
// appear on the leaderboard.
type TestResult struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID      uint    `gorm:"uniqueIndex:idx_test_results_user_test" json:"user_id"`
	MockTestID  uint    `gorm:"uniqueIndex:idx_test_results_user_test" json:"mock_test_id"`
	BandScore   float64 `gorm:"type:decimal(3,1)" json:"band_score"`
	IsPublished bool    `gorm:"default:false" json:"is_published"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MockTest MockTest `gorm:"foreignKey:MockTestID" json:"mock_test,omitempty"`
}

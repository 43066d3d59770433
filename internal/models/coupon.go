package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon is a percentage discount applied to a whole cart. A coupon that is
// inactive, past its ValidUntil, or whose UsedCount reached MaxUses degrades
// to "no discount" rather than failing the checkout.
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Code            string    `gorm:"type:varchar(100);uniqueIndex" json:"code"`
	DiscountPercent float64   `gorm:"type:decimal(5,2)" json:"discount_percent"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	ValidUntil      time.Time `json:"valid_until"`
	MaxUses         int       `json:"max_uses"`
	UsedCount       int       `gorm:"default:0" json:"used_count"`
}

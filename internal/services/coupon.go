package services

import (
	"time"

	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
)

// CartSubtotal sums the unit prices of all cart lines
func CartSubtotal(cart []models.CartItem) float64 {
	var subtotal float64
	for _, item := range cart {
		subtotal += item.UnitPrice
	}
	return subtotal
}

// ApplyCoupon computes the payable total for a subtotal. A nil, inactive,
// expired, or exhausted coupon leaves the subtotal unchanged and reports
// applied=false; it never fails the checkout.
func ApplyCoupon(subtotal float64, coupon *models.Coupon, now time.Time) (float64, bool) {
	if coupon == nil || !coupon.IsActive {
		return subtotal, false
	}
	if coupon.ValidUntil.Before(now) {
		return subtotal, false
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return subtotal, false
	}
	return subtotal * (1 - coupon.DiscountPercent/100), true
}

// CartTotal is the single pricing routine shared by session creation (for
// display) and settlement (for security). The two call sites must never
// diverge; both go through here.
func CartTotal(db *gorm.DB, cart []models.CartItem, couponCode *string, now time.Time) (float64, *models.Coupon, bool) {
	subtotal := CartSubtotal(cart)

	if couponCode == nil || *couponCode == "" {
		return subtotal, nil, false
	}

	var coupon models.Coupon
	if err := db.Where("code = ?", *couponCode).First(&coupon).Error; err != nil {
		// Unknown coupon degrades to "no discount", not an error
		return subtotal, nil, false
	}

	total, applied := ApplyCoupon(subtotal, &coupon, now)
	return total, &coupon, applied
}

// ConsumeCoupon increments a coupon's usage counter. The guard on used_count
// makes the increment atomic under concurrent settlements; a coupon at its
// limit simply stops counting, it does not fail the settlement that already
// honored it.
func ConsumeCoupon(tx *gorm.DB, couponID uint) error {
	return tx.Model(&models.Coupon{}).
		Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}

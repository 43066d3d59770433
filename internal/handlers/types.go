package handlers

import "ieltsprep_app_echo/internal/models"

// CreateSessionRequest is the payload for POST /checkout/sessions
type CreateSessionRequest struct {
	Cart       []models.CartItem `json:"cart"`
	CouponCode *string           `json:"coupon_code,omitempty"`
}

// PayRequest is the payload for POST /checkout/pay. Exactly one of SessionID
// or TestID selects what is being paid for.
type PayRequest struct {
	SessionID     *uint  `json:"session_id,omitempty"`
	TestID        *uint  `json:"test_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}

// MockTestRequest is the admin payload for creating/updating a mock test
type MockTestRequest struct {
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	ScheduledAt  string  `json:"scheduled_at"` // RFC3339
	Price        float64 `json:"price"`
	DurationDays int     `json:"duration_days"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// PracticeModuleRequest is the admin payload for creating/updating a
// practice module
type PracticeModuleRequest struct {
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	DurationDays int     `json:"duration_days"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// CouponRequest is the admin payload for creating a coupon
type CouponRequest struct {
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discount_percent"`
	ValidUntil      string  `json:"valid_until"` // RFC3339
	MaxUses         int     `json:"max_uses"`
}

// PublishResultRequest is the admin payload for publishing a band score
type PublishResultRequest struct {
	UserID     uint    `json:"user_id"`
	MockTestID uint    `json:"mock_test_id"`
	BandScore  float64 `json:"band_score"`
}

package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ItemType discriminates what a cart line or purchase grants access to
type ItemType string

const (
	ItemTypePracticeModule ItemType = "practice_module"
	ItemTypeMockTest       ItemType = "mock_test"
	ItemTypeVocabulary     ItemType = "vocabulary"
)

// SessionStatus is the lifecycle state of a checkout session
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
)

// CartItem is a single line of a checkout cart. Exactly one of ItemID or
// ItemSlug identifies the content; they are mutually exclusive.
type CartItem struct {
	ItemType     ItemType `json:"item_type"`
	ItemID       *uint    `json:"item_id,omitempty"`
	ItemSlug     *string  `json:"item_slug,omitempty"`
	UnitPrice    float64  `json:"unit_price"`
	DurationDays int      `json:"duration_days"`
}

// CheckoutSession is the durable record of a cart pending payment.
// Sessions transition pending -> completed exactly once and are never
// deleted (audit trail). The status flip is the settlement commit point.
type CheckoutSession struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID     uint          `gorm:"index" json:"user_id"`
	Cart       []CartItem    `gorm:"serializer:json" json:"cart"`
	CouponCode *string       `gorm:"type:varchar(100)" json:"coupon_code,omitempty"`
	Status     SessionStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`

	// Gateway linkage. OrderID carries the "session-" tag so webhook dispatch
	// does not need trial lookups.
	OrderID          string          `gorm:"type:varchar(100);index" json:"order_id"`
	PaymentGateway   PaymentGateway  `gorm:"type:varchar(50)" json:"payment_gateway"`
	PaymentRef       string          `gorm:"type:varchar(100)" json:"payment_ref"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata,omitempty"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

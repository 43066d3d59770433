package models

import (
	"time"

	"gorm.io/gorm"
)

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// Subscription is the account-wide entitlement created or extended once per
// settled checkout session. An unexpired subscription is extended in place
// using its own expiry as the stacking base.
type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID         uint               `gorm:"index" json:"user_id"`
	PlanLabel      string             `gorm:"type:varchar(100)" json:"plan_label"`
	Amount         float64            `gorm:"type:decimal(15,2)" json:"amount"`
	Currency       string             `gorm:"type:varchar(10);default:'IDR'" json:"currency"`
	PaymentGateway PaymentGateway     `gorm:"type:varchar(50)" json:"payment_gateway"`
	Status         SubscriptionStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	StartsAt       time.Time          `json:"starts_at"`
	ExpiresAt      time.Time          `gorm:"index" json:"expires_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

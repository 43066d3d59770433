package models

import (
	"time"

	"gorm.io/gorm"
)

// PurchaseStatus is the lifecycle state of a purchase record
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCanceled  PurchaseStatus = "canceled"
)

// Purchase is a per-item entitlement: it grants a user access to one piece of
// content until ExpiresAt. Renewing before expiry stacks: the new expiry is
// computed from the latest unexpired completed purchase of the same
// (user, item) pair, not from the settlement time.
type Purchase struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID       uint     `gorm:"index" json:"user_id"`
	ItemType     ItemType `gorm:"type:varchar(50);index" json:"item_type"`
	ItemID       *uint    `gorm:"index" json:"item_id,omitempty"`
	ItemSlug     *string  `gorm:"type:varchar(255);index" json:"item_slug,omitempty"`
	DurationDays int      `json:"duration_days"`
	Amount       float64  `gorm:"type:decimal(15,2)" json:"amount"`

	PaymentGateway PaymentGateway `gorm:"type:varchar(50)" json:"payment_gateway"`
	PaymentRef     string         `gorm:"type:varchar(100)" json:"payment_ref"`
	// OrderID is set only for purchases initiated directly against the
	// gateway (tagged "purchase-"); session-settled purchases leave it empty.
	OrderID string `gorm:"type:varchar(100);index" json:"order_id,omitempty"`

	Status    PurchaseStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	StartsAt  time.Time      `json:"starts_at"`
	ExpiresAt time.Time      `gorm:"index" json:"expires_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

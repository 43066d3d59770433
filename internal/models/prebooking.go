package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PreBooking reserves a seat for an upcoming mock test ahead of the full
// registration window. Same settlement lifecycle as Purchase but without
// expiry stacking.
type PreBooking struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID     uint    `gorm:"index" json:"user_id"`
	MockTestID *uint   `gorm:"index" json:"mock_test_id,omitempty"`
	Amount     float64 `gorm:"type:decimal(15,2)" json:"amount"`

	Status        PurchaseStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentStatus string         `gorm:"type:varchar(50)" json:"payment_status"`
	PaymentRef    string         `gorm:"type:varchar(100)" json:"payment_ref"`

	// OrderID carries the "prebook-" tag for webhook dispatch.
	OrderID          string          `gorm:"type:varchar(100);index" json:"order_id"`
	PaymentGateway   PaymentGateway  `gorm:"type:varchar(50)" json:"payment_gateway"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata,omitempty"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata,omitempty"`

	// Relationships
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MockTest *MockTest `gorm:"foreignKey:MockTestID" json:"mock_test,omitempty"`
}

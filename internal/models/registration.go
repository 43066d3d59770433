package models

import (
	"time"

	"gorm.io/gorm"
)

// RegistrationStatus is the lifecycle state of a mock-test registration
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusCompleted RegistrationStatus = "completed"
)

// Registration links a user to a specific scheduled mock test so enrollment
// checks do not need to scan purchases. At most one row per (user, test);
// settlement upserts on that constraint.
type Registration struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID     uint               `gorm:"uniqueIndex:idx_registrations_user_test" json:"user_id"`
	MockTestID uint               `gorm:"uniqueIndex:idx_registrations_user_test" json:"mock_test_id"`
	Status     RegistrationStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentRef string             `gorm:"type:varchar(100)" json:"payment_ref"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MockTest MockTest `gorm:"foreignKey:MockTestID" json:"mock_test,omitempty"`
}

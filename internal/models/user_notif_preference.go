package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelNone  NotificationChannel = "none"
)

// UserNotifPreference controls how (and whether) a user receives
// confirmation and reminder messages. Users without a row get the email
// default.
type UserNotifPreference struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID  uint                `gorm:"uniqueIndex" json:"user_id"`
	Channel NotificationChannel `gorm:"type:varchar(20);default:'email'" json:"channel"`
}

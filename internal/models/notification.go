package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one entry in a user's inbox.
type Notification struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"` // UUIDv7, time ordered.

	UserID  string `gorm:"type:varchar(36);not null;index:idx_notifications_user_created,priority:1" json:"userId"` // Recipient.
	Title   string `gorm:"type:text;not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`

	IsRead bool       `gorm:"not null;default:false;index" json:"isRead"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	Data datatypes.JSON `gorm:"type:json" json:"data,omitempty"` // Reference payload, e.g. accessId/restaurantId.

	CreatedAt time.Time `gorm:"not null;index:idx_notifications_user_created,priority:2" json:"createdAt"`
}
